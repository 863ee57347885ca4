package participantdata

import (
	"encoding/json"
	"testing"

	"github.com/cph-cachet/carp-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const ns = "dk.carp.webservices.input"

func expectedTypes(names ...string) []models.InputDataType {
	out := make([]models.InputDataType, 0, len(names))
	for _, n := range names {
		out = append(out, models.InputDataType{Namespace: ns, Name: n})
	}
	return out
}

func decode(t *testing.T, raw string) FieldGroup {
	t.Helper()
	g, err := DecodeValue(json.RawMessage(raw))
	require.NoError(t, err)
	return g
}

func taggedGroups(f *FormState) []FieldGroup {
	var out []FieldGroup
	for _, g := range f.Groups() {
		if g.Tag() != "" {
			out = append(out, g)
		}
	}
	return out
}

func TestInterpretKeepsEveryGroupPresent(t *testing.T) {
	form, rules := NewInterpreter(zap.NewNop()).Interpret(nil, nil)

	assert.Len(t, form.Groups(), len(EditableTypes()))
	for _, dt := range EditableTypes() {
		require.NotNil(t, form.Group(dt), dt.String())
		assert.Empty(t, form.Group(dt).Tag(), dt.String())
	}
	assert.Empty(t, rules.Rules())
}

func TestInterpretTagsExpectedGroupsOnly(t *testing.T) {
	tests := []struct {
		name     string
		expected []models.InputDataType
		tagged   int
	}{
		{"empty", nil, 0},
		{"consent only", expectedTypes("informed_consent"), 0},
		{"single", expectedTypes("phone_number"), 1},
		{"consent excluded", expectedTypes("informed_consent", "ssn", "address"), 2},
		{"duplicates counted once", expectedTypes("sex", "sex", "diagnosis"), 2},
		{"all", expectedTypes("phone_number", "sex", "full_name", "address", "diagnosis", "ssn", "informed_consent"), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, _ := NewInterpreter(zap.NewNop()).Interpret(tt.expected, nil)
			assert.Len(t, taggedGroups(form), tt.tagged)
			assert.Len(t, form.Groups(), len(EditableTypes()))
		})
	}
}

func TestInterpretStampsNamespacedTag(t *testing.T) {
	form, _ := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("ssn"), nil)

	assert.Equal(t, ns+".ssn", form.SocialSecurityNumber().Tag())
	assert.Empty(t, form.PhoneNumber().Tag())
}

func TestInterpretRules(t *testing.T) {
	_, rules := NewInterpreter(zap.NewNop()).Interpret(
		expectedTypes("phone_number", "sex", "full_name", "address", "diagnosis", "ssn", "informed_consent"), nil)

	assert.True(t, rules.Has(PhoneNumber))
	assert.True(t, rules.Has(SocialSecurityNumber))
	assert.True(t, rules.Has(Diagnosis))
	assert.True(t, rules.Has(FullName))
	assert.True(t, rules.Has(Address))
	assert.False(t, rules.Has(Sex))
	assert.False(t, rules.Has(InformedConsent))

	_, none := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("sex"), nil)
	assert.Empty(t, none.Rules())
}

func TestInterpretOverlaysStoredValues(t *testing.T) {
	stored := []FieldGroup{
		decode(t, `{"__type":"dk.carp.webservices.input.phone_number","countryCode":"45","icoCode":"DK","number":"12345678"}`),
		decode(t, `{"__type":"dk.carp.webservices.input.sex","value":"female"}`),
	}

	form, _ := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("phone_number", "sex"), stored)

	phone := form.PhoneNumber()
	assert.Equal(t, ns+".phone_number", phone.Tag())
	assert.Equal(t, "45", phone.CountryCode)
	assert.Equal(t, "DK", phone.ICOCode)
	assert.Equal(t, "12345678", phone.Number)
	require.NotNil(t, form.Sex().Value)
	assert.Equal(t, "female", *form.Sex().Value)
}

func TestInterpretShowsUnexpectedStoredValueUntagged(t *testing.T) {
	stored := []FieldGroup{
		decode(t, `{"__type":"dk.carp.webservices.input.ssn","country":"DK","socialSecurityNumber":"010101-1234"}`),
	}

	form, rules := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("phone_number"), stored)

	ssn := form.SocialSecurityNumber()
	assert.Equal(t, "010101-1234", ssn.SocialSecurityNumber)
	assert.Empty(t, ssn.Tag())
	assert.False(t, rules.Has(SocialSecurityNumber))
	assert.NotContains(t, Serialize(form), ns+".ssn")
}

func TestInterpretDoesNotAliasStoredValues(t *testing.T) {
	stored := decode(t, `{"__type":"dk.carp.webservices.input.full_name","firstName":"Ada","lastName":"Lovelace"}`)

	form, _ := NewInterpreter(zap.NewNop()).Interpret(expectedTypes("full_name"), []FieldGroup{stored})
	require.NoError(t, form.Set("full_name.firstName", strPtr("Grace")))

	assert.Equal(t, "Ada", stored.(*FullNameGroup).FirstName)
}

func TestInterpretIsIdempotent(t *testing.T) {
	expected := expectedTypes("phone_number", "diagnosis", "sex", "informed_consent")
	stored := []FieldGroup{
		decode(t, `{"__type":"dk.carp.webservices.input.diagnosis","effectiveDate":"2024-03-01T00:00:00Z","diagnosis":"flu","icd11Code":"1E30","conclusion":""}`),
	}
	in := NewInterpreter(zap.NewNop())

	form1, rules1 := in.Interpret(expected, stored)
	form2, rules2 := in.Interpret(expected, stored)

	assert.Equal(t, form1, form2)
	assert.Equal(t, rules1, rules2)
}

func TestInterpretLogsUnknownExpectedType(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	expected := append(expectedTypes("phone_number"), models.InputDataType{Namespace: "org.example", Name: "shoe_size"})

	form, _ := NewInterpreter(zap.New(core)).Interpret(expected, nil)

	assert.Len(t, taggedGroups(form), 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shoe_size", logs.All()[0].ContextMap()["name"])
}

func TestHasEditableFields(t *testing.T) {
	assert.False(t, HasEditableFields(nil))
	assert.False(t, HasEditableFields(expectedTypes("informed_consent")))
	assert.True(t, HasEditableFields(expectedTypes("informed_consent", "sex")))
	assert.True(t, HasEditableFields(expectedTypes("address")))
}

func TestDecodeValue(t *testing.T) {
	g, err := DecodeValue(json.RawMessage(`null`))
	assert.NoError(t, err)
	assert.Nil(t, g)

	_, err = DecodeValue(json.RawMessage(`{"countryCode":"45"}`))
	assert.ErrorIs(t, err, ErrMissingTag)

	_, err = DecodeValue(json.RawMessage(`{"__type":"org.example.shoe_size","size":44}`))
	assert.ErrorIs(t, err, ErrUnknownDataType)

	_, err = DecodeValue(json.RawMessage(`{"__type":"dk.carp.webservices.input.informed_consent","name":"x"}`))
	assert.ErrorIs(t, err, ErrDisplayOnly)

	g, err = DecodeValue(json.RawMessage(`{"__type":"dk.carp.webservices.input.sex","value":null}`))
	require.NoError(t, err)
	assert.Equal(t, Sex, g.DataType())
	assert.True(t, g.IsEmpty())
}

func strPtr(s string) *string { return &s }
