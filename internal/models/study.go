package models

import (
	"encoding/json"
	"time"
)

// InputDataType identifies a kind of participant data, e.g. dk.carp.webservices.input.phone_number.
type InputDataType struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
}

// Tag returns the discriminant used for values of this type on the wire.
func (t InputDataType) Tag() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

type ParticipantAttribute struct {
	Type          string        `json:"__type"`
	InputDataType InputDataType `json:"inputDataType"`
}

// ExpectedParticipantData is one entry of the protocol's expectedParticipantData set.
type ExpectedParticipantData struct {
	Attribute  ParticipantAttribute `json:"attribute"`
	AssignedTo json.RawMessage      `json:"assignedTo,omitempty"`
}

type ParticipantRole struct {
	Role       string `json:"role"`
	IsOptional bool   `json:"isOptional"`
}

type StudyProtocolSnapshot struct {
	ID                      string                    `json:"id"`
	Name                    string                    `json:"name"`
	Description             string                    `json:"description,omitempty"`
	ParticipantRoles        []ParticipantRole         `json:"participantRoles"`
	ExpectedParticipantData []ExpectedParticipantData `json:"expectedParticipantData"`
}

type StudyDetails struct {
	StudyID          string                 `json:"studyId"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	CreatedOn        time.Time              `json:"createdOn"`
	ProtocolSnapshot *StudyProtocolSnapshot `json:"protocolSnapshot,omitempty"`
}

// ExpectedDataTypes lists the input data types the study protocol expects, in protocol order.
func (s *StudyDetails) ExpectedDataTypes() []InputDataType {
	if s == nil || s.ProtocolSnapshot == nil {
		return nil
	}
	types := make([]InputDataType, 0, len(s.ProtocolSnapshot.ExpectedParticipantData))
	for _, d := range s.ProtocolSnapshot.ExpectedParticipantData {
		types = append(types, d.Attribute.InputDataType)
	}
	return types
}
