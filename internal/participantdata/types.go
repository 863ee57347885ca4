// Package participantdata builds, validates and serializes the participant data
// form of a study deployment from the study's expected participant data.
//
// The form is interpreted from the protocol's expected data types and the
// values already stored for the participant; editing happens through explicit
// field-path setters, and the result is serialized back into the tagged wire
// format where a null entry means "no data of this type".
package participantdata

import "strings"

// DataType enumerates the participant data types the form knows how to edit.
type DataType int

const (
	Unknown DataType = iota
	PhoneNumber
	SocialSecurityNumber
	FullName
	Address
	Diagnosis
	Sex
	InformedConsent
)

// WidgetKind is the input variant a data type renders as.
type WidgetKind int

const (
	WidgetNone WidgetKind = iota
	WidgetEnumeratedSelect
	WidgetFreeText
	WidgetComposite
	WidgetFullName
	WidgetUnknown
)

func (k WidgetKind) String() string {
	switch k {
	case WidgetNone:
		return "none"
	case WidgetEnumeratedSelect:
		return "enumerated_select"
	case WidgetFreeText:
		return "free_text"
	case WidgetComposite:
		return "composite"
	case WidgetFullName:
		return "full_name"
	default:
		return "unknown"
	}
}

// ruleKind says what validation a data type contributes when the study expects it.
type ruleKind int

const (
	ruleNone ruleKind = iota
	ruleStructural
	ruleCrossField
)

type dataTypeInfo struct {
	name   string
	label  string
	widget WidgetKind
	rule   ruleKind
	// newGroup returns the empty, untagged group; nil for display-only types.
	newGroup func() FieldGroup
}

var dataTypes = map[DataType]dataTypeInfo{
	PhoneNumber: {
		name: "phone_number", label: "Phone Number",
		widget: WidgetComposite, rule: ruleCrossField,
		newGroup: func() FieldGroup { return &PhoneNumberGroup{} },
	},
	SocialSecurityNumber: {
		name: "ssn", label: "Social Security Number",
		widget: WidgetComposite, rule: ruleCrossField,
		newGroup: func() FieldGroup { return &SocialSecurityNumberGroup{} },
	},
	FullName: {
		name: "full_name", label: "Full Name",
		widget: WidgetFullName, rule: ruleStructural,
		newGroup: func() FieldGroup { return &FullNameGroup{} },
	},
	Address: {
		name: "address", label: "Address",
		widget: WidgetComposite, rule: ruleStructural,
		newGroup: func() FieldGroup { return &AddressGroup{} },
	},
	Diagnosis: {
		name: "diagnosis", label: "Diagnosis",
		widget: WidgetComposite, rule: ruleCrossField,
		newGroup: func() FieldGroup { return &DiagnosisGroup{} },
	},
	Sex: {
		name: "sex", label: "Sex",
		widget: WidgetFreeText, rule: ruleNone,
		newGroup: func() FieldGroup { return &EnumeratedGroup{kind: Sex} },
	},
	InformedConsent: {
		name: "informed_consent", label: "Informed Consent",
		widget: WidgetNone, rule: ruleNone,
	},
}

// editableTypes is the fixed order groups are listed and serialized in.
var editableTypes = []DataType{PhoneNumber, Sex, FullName, Address, Diagnosis, SocialSecurityNumber}

var byName = func() map[string]DataType {
	m := make(map[string]DataType, len(dataTypes))
	for dt, info := range dataTypes {
		m[info.name] = dt
	}
	return m
}()

// ParseDataType maps a bare data type name, e.g. "phone_number", to its variant.
func ParseDataType(name string) DataType {
	if dt, ok := byName[name]; ok {
		return dt
	}
	return Unknown
}

// DataTypeFromTag maps a discriminant such as "dk.carp.webservices.input.ssn" by its last segment.
func DataTypeFromTag(tag string) DataType {
	return ParseDataType(NameFromTag(tag))
}

// NameFromTag strips the namespace from a discriminant tag.
func NameFromTag(tag string) string {
	if i := strings.LastIndex(tag, "."); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func (d DataType) String() string {
	if info, ok := dataTypes[d]; ok {
		return info.name
	}
	return "unknown"
}

// Label is the human readable title of the data type.
func (d DataType) Label() string {
	if info, ok := dataTypes[d]; ok {
		return info.label
	}
	return "Unknown"
}

// Editable reports whether the type gets a group in the form.
func (d DataType) Editable() bool {
	info, ok := dataTypes[d]
	return ok && info.newGroup != nil
}

// EditableTypes returns every data type that has a form group, in display order.
func EditableTypes() []DataType {
	out := make([]DataType, len(editableTypes))
	copy(out, editableTypes)
	return out
}

// LabelForName returns the display label of a data type name, falling back to the name itself.
func LabelForName(name string) string {
	if dt := ParseDataType(name); dt != Unknown {
		return dt.Label()
	}
	return name
}
