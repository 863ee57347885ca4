package participantdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownDataType = errors.New("unknown participant data type")
	ErrDisplayOnly     = errors.New("participant data type is display only")
	ErrMissingTag      = errors.New("participant data value has no __type")
)

// FieldGroup is the set of fields of one data type. Every variant carries its
// discriminant tag; an empty tag means the study does not expect the type.
type FieldGroup interface {
	DataType() DataType
	Tag() string
	// IsEmpty reports whether every field other than the tag is unset.
	IsEmpty() bool

	setTag(tag string)
	clone() FieldGroup
}

// Tagged is the "__type" discriminant shared by all variants.
type Tagged struct {
	Type string `json:"__type"`
}

func (t Tagged) Tag() string { return t.Type }

func (t *Tagged) setTag(tag string) { t.Type = tag }

type PhoneNumberGroup struct {
	Tagged
	CountryCode string `json:"countryCode" validate:"required_with=Number"`
	ICOCode     string `json:"icoCode"`
	Number      string `json:"number" validate:"required_with=CountryCode"`
}

func (g *PhoneNumberGroup) DataType() DataType { return PhoneNumber }

func (g *PhoneNumberGroup) IsEmpty() bool {
	return g.CountryCode == "" && g.ICOCode == "" && g.Number == ""
}

func (g *PhoneNumberGroup) clone() FieldGroup { c := *g; return &c }

type SocialSecurityNumberGroup struct {
	Tagged
	Country              string `json:"country" validate:"required_with=SocialSecurityNumber"`
	SocialSecurityNumber string `json:"socialSecurityNumber" validate:"required_with=Country"`
}

func (g *SocialSecurityNumberGroup) DataType() DataType { return SocialSecurityNumber }

func (g *SocialSecurityNumberGroup) IsEmpty() bool {
	return g.Country == "" && g.SocialSecurityNumber == ""
}

func (g *SocialSecurityNumberGroup) clone() FieldGroup { c := *g; return &c }

type FullNameGroup struct {
	Tagged
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
}

func (g *FullNameGroup) DataType() DataType { return FullName }

func (g *FullNameGroup) IsEmpty() bool {
	return g.FirstName == "" && g.MiddleName == "" && g.LastName == ""
}

func (g *FullNameGroup) clone() FieldGroup { c := *g; return &c }

type AddressGroup struct {
	Tagged
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (g *AddressGroup) DataType() DataType { return Address }

func (g *AddressGroup) IsEmpty() bool {
	return g.Address1 == "" && g.Address2 == "" && g.Street == "" &&
		g.City == "" && g.PostalCode == "" && g.Country == ""
}

func (g *AddressGroup) clone() FieldGroup { c := *g; return &c }

type DiagnosisGroup struct {
	Tagged
	EffectiveDate *time.Time `json:"effectiveDate"`
	Diagnosis     string     `json:"diagnosis"`
	ICD11Code     string     `json:"icd11Code" validate:"required_with=EffectiveDate Diagnosis Conclusion"`
	Conclusion    string     `json:"conclusion"`
}

func (g *DiagnosisGroup) DataType() DataType { return Diagnosis }

func (g *DiagnosisGroup) IsEmpty() bool {
	return g.EffectiveDate == nil && g.Diagnosis == "" && g.ICD11Code == "" && g.Conclusion == ""
}

func (g *DiagnosisGroup) clone() FieldGroup {
	c := *g
	if g.EffectiveDate != nil {
		d := *g.EffectiveDate
		c.EffectiveDate = &d
	}
	return &c
}

// EnumeratedGroup holds a single value. A nil value is an explicitly cleared selection.
type EnumeratedGroup struct {
	Tagged
	Value *string `json:"value"`

	kind DataType
}

func (g *EnumeratedGroup) DataType() DataType { return g.kind }

func (g *EnumeratedGroup) IsEmpty() bool {
	return g.Value == nil || *g.Value == ""
}

func (g *EnumeratedGroup) clone() FieldGroup {
	c := *g
	if g.Value != nil {
		v := *g.Value
		c.Value = &v
	}
	return &c
}

// DecodeValue decodes one stored participant data value into its group variant.
// A null value decodes to a nil group.
func DecodeValue(raw json.RawMessage) (FieldGroup, error) {
	if raw == nil || string(raw) == "null" {
		return nil, nil
	}

	var head Tagged
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decoding participant data value: %w", err)
	}
	if head.Type == "" {
		return nil, ErrMissingTag
	}

	dt := DataTypeFromTag(head.Type)
	if dt == Unknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataType, head.Type)
	}
	if !dt.Editable() {
		return nil, fmt.Errorf("%w: %s", ErrDisplayOnly, head.Type)
	}

	group := dataTypes[dt].newGroup()
	if err := json.Unmarshal(raw, group); err != nil {
		return nil, fmt.Errorf("decoding %s value: %w", dt, err)
	}
	return group, nil
}
