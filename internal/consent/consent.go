// Package consent pairs participants with their signed informed consent and
// exports it as a PDF.
package consent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"

	"go.uber.org/zap"
)

var (
	ErrNoConsent        = errors.New("participant has no informed consent")
	ErrMalformedConsent = errors.New("malformed informed consent")
)

// ParticipantConsent is a participant of a deployment and the consent that
// applies to them. Consent is nil when none was registered.
type ParticipantConsent struct {
	Participant models.ParticipantAccount
	Consent     *models.InformedConsent
}

// Associate finds the consent of every participant in the group: the consent
// stored for the participant's role, otherwise the consent stored for the
// whole group. Role names are compared exactly.
func Associate(group *models.ParticipantGroup, data *models.ParticipantData, log *zap.Logger) []ParticipantConsent {
	if group == nil {
		return nil
	}

	var common *models.InformedConsent
	byRole := map[string]*models.InformedConsent{}
	if data != nil {
		common = find(data.Common, log)
		for _, r := range data.Roles {
			if c := find(r.Data, log); c != nil {
				byRole[r.RoleName] = c
			}
		}
	}

	out := make([]ParticipantConsent, 0, len(group.Participants))
	for _, p := range group.Participants {
		pc := ParticipantConsent{Participant: p, Consent: common}
		if c, ok := byRole[p.Role]; ok {
			pc.Consent = c
		}
		out = append(out, pc)
	}
	return out
}

// ForParticipant returns the consent that applies to one participant.
func ForParticipant(group *models.ParticipantGroup, data *models.ParticipantData, participantID string, log *zap.Logger) (models.ParticipantAccount, *models.InformedConsent, error) {
	for _, pc := range Associate(group, data, log) {
		if pc.Participant.ParticipantID != participantID {
			continue
		}
		if pc.Consent == nil {
			return pc.Participant, nil, ErrNoConsent
		}
		return pc.Participant, pc.Consent, nil
	}
	return models.ParticipantAccount{}, nil, ErrNoConsent
}

// find returns the informed consent stored in values. Keys are visited in
// order so the result does not depend on map iteration.
func find(values map[string]json.RawMessage, log *zap.Logger) *models.InformedConsent {
	keys := make([]string, 0, len(values))
	for k := range values {
		if participantdata.DataTypeFromTag(k) == participantdata.InformedConsent {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := values[k]
		if models.IsNull(raw) {
			continue
		}
		c, err := DecodeConsent(raw)
		if err != nil {
			log.Warn("Skipping unreadable informed consent", zap.String("key", k), zap.Error(err))
			continue
		}
		return c
	}
	return nil
}

// DecodeConsent decodes a stored informed consent value.
func DecodeConsent(raw json.RawMessage) (*models.InformedConsent, error) {
	var c models.InformedConsent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConsent, err)
	}
	return &c, nil
}
