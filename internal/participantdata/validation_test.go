package participantdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func interpretAll(t *testing.T) (*FormState, RuleSet) {
	t.Helper()
	return NewInterpreter(zap.NewNop()).Interpret(
		expectedTypes("phone_number", "sex", "full_name", "address", "diagnosis", "ssn"), nil)
}

func TestValidateEmptyFormPasses(t *testing.T) {
	form, rules := interpretAll(t)
	assert.Nil(t, rules.Validate(form))
}

func TestValidateCrossFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		edits map[string]string
		paths []string
	}{
		{
			name:  "phone number without country code",
			edits: map[string]string{"phone_number.number": "12345678"},
			paths: []string{"phone_number.countryCode"},
		},
		{
			name:  "phone country code without number",
			edits: map[string]string{"phone_number.countryCode": "45"},
			paths: []string{"phone_number.number"},
		},
		{
			name:  "complete phone number",
			edits: map[string]string{"phone_number.countryCode": "45", "phone_number.number": "12345678"},
		},
		{
			name:  "ico code alone",
			edits: map[string]string{"phone_number.icoCode": "DK"},
		},
		{
			name:  "ssn without country",
			edits: map[string]string{"ssn.socialSecurityNumber": "010101-1234"},
			paths: []string{"ssn.country"},
		},
		{
			name:  "ssn country without number",
			edits: map[string]string{"ssn.country": "DK"},
			paths: []string{"ssn.socialSecurityNumber"},
		},
		{
			name:  "diagnosis without icd11 code",
			edits: map[string]string{"diagnosis.diagnosis": "flu"},
			paths: []string{"diagnosis.icd11Code"},
		},
		{
			name:  "diagnosis date without icd11 code",
			edits: map[string]string{"diagnosis.effectiveDate": "2024-03-01"},
			paths: []string{"diagnosis.icd11Code"},
		},
		{
			name:  "complete diagnosis",
			edits: map[string]string{"diagnosis.diagnosis": "flu", "diagnosis.icd11Code": "1E30"},
		},
		{
			name:  "icd11 code alone",
			edits: map[string]string{"diagnosis.icd11Code": "1E30"},
		},
		{
			name: "several failing groups",
			edits: map[string]string{
				"phone_number.number":  "12345678",
				"diagnosis.conclusion": "resolved",
			},
			paths: []string{"phone_number.countryCode", "diagnosis.icd11Code"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, rules := interpretAll(t)
			for path, value := range tt.edits {
				v := value
				require.NoError(t, form.Set(path, &v))
			}

			errs := rules.Validate(form)
			if len(tt.paths) == 0 {
				assert.Nil(t, errs)
				return
			}
			require.Len(t, errs, len(tt.paths))
			for _, path := range tt.paths {
				assert.NotEmpty(t, errs.ForPath(path), path)
			}
		})
	}
}

func TestValidateMessages(t *testing.T) {
	form, rules := interpretAll(t)
	require.NoError(t, form.Set("phone_number.number", strPtr("12345678")))

	errs := rules.Validate(form)

	assert.Equal(t, "Country code is required when number is set", errs.ForPath("phone_number.countryCode"))
	assert.Contains(t, errs.Error(), "phone_number.countryCode")
}

func TestValidateSkipsUntaggedGroups(t *testing.T) {
	form, rules := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("phone_number"), nil)
	require.NoError(t, form.Set("ssn.socialSecurityNumber", strPtr("010101-1234")))

	assert.Nil(t, rules.Validate(form))
}

func TestValidateOnlyRulesOfExpectedTypes(t *testing.T) {
	form, rules := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("sex", "full_name"), nil)
	require.NoError(t, form.Set("phone_number.number", strPtr("12345678")))

	assert.False(t, rules.Has(PhoneNumber))
	assert.Nil(t, rules.Validate(form))
}
