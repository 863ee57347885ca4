package participantdata

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name so errors line up with field paths.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// messages holds the text shown for each cross-field rule, keyed by field path.
var messages = map[string]string{
	"phone_number.countryCode": "Country code is required when number is set",
	"phone_number.number":      "Number is required when country code is set",
	"ssn.country":              "Country is required when social security number is set",
	"ssn.socialSecurityNumber": "Social Security Number is required when country is set",
	"diagnosis.icd11Code":      "ICD11 code is required when other diagnosis fields are set",
	"diagnosis.effectiveDate":  "Effective date must be a valid date",
}

// FieldError is a validation failure attached to one field path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationErrors blocks a submission; each entry points at the offending field.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Path+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// ForPath returns the message attached to path, or "".
func (e ValidationErrors) ForPath(path string) string {
	for _, fe := range e {
		if fe.Path == path {
			return fe.Message
		}
	}
	return ""
}

// Rule validates one data type's group.
type Rule struct {
	DataType DataType
	kind     ruleKind
}

// RuleSet is the conjunction of the rules of the data types a study expects.
type RuleSet struct {
	rules []Rule
}

func (r *RuleSet) add(dt DataType) {
	info := dataTypes[dt]
	if info.rule == ruleNone || r.Has(dt) {
		return
	}
	r.rules = append(r.rules, Rule{DataType: dt, kind: info.rule})
}

// Has reports whether the set contains a rule for dt.
func (r RuleSet) Has(dt DataType) bool {
	for _, rule := range r.rules {
		if rule.DataType == dt {
			return true
		}
	}
	return false
}

// Rules returns the rules in the order they were added.
func (r RuleSet) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Validate checks every rule against the form. Rules only apply to groups the
// study expects, i.e. groups that carry a tag.
func (r RuleSet) Validate(f *FormState) ValidationErrors {
	var errs ValidationErrors
	for _, rule := range r.rules {
		g := f.Group(rule.DataType)
		if g == nil || g.Tag() == "" {
			continue
		}
		errs = append(errs, validateGroup(g)...)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateGroup(g FieldGroup) ValidationErrors {
	err := validate.Struct(g)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Path: g.DataType().String(), Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		path := g.DataType().String() + "." + fe.Field()
		msg, ok := messages[path]
		if !ok {
			msg = "Invalid value"
		}
		out = append(out, FieldError{Path: path, Message: msg})
	}
	return out
}
