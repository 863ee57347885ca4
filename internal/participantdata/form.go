package participantdata

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownField = errors.New("unknown participant data field")

const dateLayout = "2006-01-02"

// FormState holds one group per editable data type. Every group is always
// present, so fields can be addressed without checking for the group first.
type FormState struct {
	groups map[DataType]FieldGroup
}

func newFormState() *FormState {
	f := &FormState{groups: make(map[DataType]FieldGroup, len(editableTypes))}
	for _, dt := range editableTypes {
		f.groups[dt] = dataTypes[dt].newGroup()
	}
	return f
}

// Group returns the group of a data type, or nil for types without one.
func (f *FormState) Group(dt DataType) FieldGroup {
	return f.groups[dt]
}

// Groups returns all groups in display order.
func (f *FormState) Groups() []FieldGroup {
	out := make([]FieldGroup, 0, len(editableTypes))
	for _, dt := range editableTypes {
		out = append(out, f.groups[dt])
	}
	return out
}

func (f *FormState) PhoneNumber() *PhoneNumberGroup {
	return f.groups[PhoneNumber].(*PhoneNumberGroup)
}

func (f *FormState) SocialSecurityNumber() *SocialSecurityNumberGroup {
	return f.groups[SocialSecurityNumber].(*SocialSecurityNumberGroup)
}

func (f *FormState) FullName() *FullNameGroup {
	return f.groups[FullName].(*FullNameGroup)
}

func (f *FormState) Address() *AddressGroup {
	return f.groups[Address].(*AddressGroup)
}

func (f *FormState) Diagnosis() *DiagnosisGroup {
	return f.groups[Diagnosis].(*DiagnosisGroup)
}

func (f *FormState) Sex() *EnumeratedGroup {
	return f.groups[Sex].(*EnumeratedGroup)
}

// Clone returns a deep copy of the form.
func (f *FormState) Clone() *FormState {
	c := &FormState{groups: make(map[DataType]FieldGroup, len(f.groups))}
	for dt, g := range f.groups {
		c.groups[dt] = g.clone()
	}
	return c
}

// replace overlays a stored group wholesale. The tag decided by the schema walk
// survives only as "expected or not": an unexpected type stays untagged.
func (f *FormState) replace(g FieldGroup, expected bool) {
	g = g.clone()
	if !expected {
		g.setTag("")
	}
	f.groups[g.DataType()] = g
}

// Set updates the field at path, e.g. "phone_number.countryCode". A nil value
// clears the field.
func (f *FormState) Set(path string, value *string) error {
	fp, ok := pathIndex[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	return fp.set(f, value)
}

// Value returns the current value at path as it is shown in an input.
func (f *FormState) Value(path string) (string, error) {
	fp, ok := pathIndex[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	return fp.get(f), nil
}

// FieldPath describes one addressable field of the form.
type FieldPath struct {
	DataType  DataType
	Field     string
	Label     string
	InputType string

	get func(*FormState) string
	set func(*FormState, *string) error
}

// Path is the dotted address of the field, e.g. "ssn.country".
func (p FieldPath) Path() string {
	return p.DataType.String() + "." + p.Field
}

func textField(dt DataType, field, label string, ref func(*FormState) *string) FieldPath {
	return FieldPath{
		DataType: dt, Field: field, Label: label, InputType: "text",
		get: func(f *FormState) string { return *ref(f) },
		set: func(f *FormState, v *string) error {
			*ref(f) = deref(v)
			return nil
		},
	}
}

var fieldPaths = []FieldPath{
	textField(PhoneNumber, "countryCode", "Country Code", func(f *FormState) *string { return &f.PhoneNumber().CountryCode }),
	textField(PhoneNumber, "icoCode", "ICO Code", func(f *FormState) *string { return &f.PhoneNumber().ICOCode }),
	textField(PhoneNumber, "number", "Number", func(f *FormState) *string { return &f.PhoneNumber().Number }),

	{
		DataType: Sex, Field: "value", Label: "Sex", InputType: "text",
		get: func(f *FormState) string { return deref(f.Sex().Value) },
		// The empty string is the "clear" option and stores null.
		set: func(f *FormState, v *string) error {
			if v == nil || *v == "" {
				f.Sex().Value = nil
				return nil
			}
			s := *v
			f.Sex().Value = &s
			return nil
		},
	},

	textField(FullName, "firstName", "First Name", func(f *FormState) *string { return &f.FullName().FirstName }),
	textField(FullName, "middleName", "Middle Name", func(f *FormState) *string { return &f.FullName().MiddleName }),
	textField(FullName, "lastName", "Last Name", func(f *FormState) *string { return &f.FullName().LastName }),

	textField(Address, "address1", "Address 1", func(f *FormState) *string { return &f.Address().Address1 }),
	textField(Address, "address2", "Address 2", func(f *FormState) *string { return &f.Address().Address2 }),
	textField(Address, "street", "Street", func(f *FormState) *string { return &f.Address().Street }),
	textField(Address, "city", "City", func(f *FormState) *string { return &f.Address().City }),
	textField(Address, "postalCode", "Postal Code", func(f *FormState) *string { return &f.Address().PostalCode }),
	textField(Address, "country", "Country", func(f *FormState) *string { return &f.Address().Country }),

	{
		DataType: Diagnosis, Field: "effectiveDate", Label: "Effective Date", InputType: "date",
		get: func(f *FormState) string {
			if d := f.Diagnosis().EffectiveDate; d != nil {
				return d.Format(dateLayout)
			}
			return ""
		},
		set: func(f *FormState, v *string) error {
			if v == nil || *v == "" {
				f.Diagnosis().EffectiveDate = nil
				return nil
			}
			d, err := parseDate(*v)
			if err != nil {
				return ValidationErrors{{Path: "diagnosis.effectiveDate", Message: "Effective date must be a valid date"}}
			}
			f.Diagnosis().EffectiveDate = &d
			return nil
		},
	},
	textField(Diagnosis, "diagnosis", "Diagnosis", func(f *FormState) *string { return &f.Diagnosis().Diagnosis }),
	textField(Diagnosis, "icd11Code", "ICD-11 Code", func(f *FormState) *string { return &f.Diagnosis().ICD11Code }),
	textField(Diagnosis, "conclusion", "Conclusion", func(f *FormState) *string { return &f.Diagnosis().Conclusion }),

	textField(SocialSecurityNumber, "country", "Country", func(f *FormState) *string { return &f.SocialSecurityNumber().Country }),
	textField(SocialSecurityNumber, "socialSecurityNumber", "Social Security Number", func(f *FormState) *string {
		return &f.SocialSecurityNumber().SocialSecurityNumber
	}),
}

var pathIndex = func() map[string]FieldPath {
	m := make(map[string]FieldPath, len(fieldPaths))
	for _, fp := range fieldPaths {
		m[fp.Path()] = fp
	}
	return m
}()

// FieldPaths lists every addressable field in display order.
func FieldPaths() []FieldPath {
	out := make([]FieldPath, len(fieldPaths))
	copy(out, fieldPaths)
	return out
}

// FieldPathsOf lists the fields of one data type.
func FieldPathsOf(dt DataType) []FieldPath {
	var out []FieldPath
	for _, fp := range fieldPaths {
		if fp.DataType == dt {
			out = append(out, fp)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
