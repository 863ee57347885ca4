package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// ParticipantData holds everything stored for one deployment: values shared by the
// whole group and values scoped to a participant role. A value is a JSON object
// tagged with "__type", or null when nothing was provided.
type ParticipantData struct {
	StudyDeploymentID string                     `json:"studyDeploymentId"`
	Common            map[string]json.RawMessage `json:"common"`
	Roles             []RoleData                 `json:"roles"`
}

type RoleData struct {
	RoleName string                     `json:"roleName"`
	Data     map[string]json.RawMessage `json:"data"`
}

// Role returns the data stored for a role.
func (d *ParticipantData) Role(roleName string) (map[string]json.RawMessage, bool) {
	if d == nil {
		return nil, false
	}
	for _, r := range d.Roles {
		if r.RoleName == roleName {
			return r.Data, true
		}
	}
	return nil, false
}

// StoredValues returns the non-null values visible to a role: common values first,
// then the role's own values, so a role-scoped value is applied after a common one.
func (d *ParticipantData) StoredValues(roleName string) []json.RawMessage {
	if d == nil {
		return nil
	}
	values := nonNull(d.Common)
	if roleData, ok := d.Role(roleName); ok {
		values = append(values, nonNull(roleData)...)
	}
	return values
}

// nonNull returns the non-null values of m ordered by key.
func nonNull(m map[string]json.RawMessage) []json.RawMessage {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if IsNull(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// InformedConsent is the stored value of the informed_consent data type.
// Consent holds the signed consent document as a JSON string.
type InformedConsent struct {
	Type            string    `json:"__type"`
	SignedTimestamp time.Time `json:"signedTimestamp"`
	SignedLocation  *string   `json:"signedLocation,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	Name            string    `json:"name"`
	Consent         string    `json:"consent"`
	SignatureImage  *string   `json:"signatureImage,omitempty"`
}
