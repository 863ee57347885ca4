package services

import (
	"context"

	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/consent"
	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"

	"go.uber.org/zap"
)

// Coverage counts the participants of a deployment who have a value for one
// expected data type.
type Coverage struct {
	Type     models.InputDataType
	Label    string
	Provided int
	Total    int
}

// DeploymentView is everything the deployment page renders.
type DeploymentView struct {
	StudyID  string
	Study    *models.StudyDetails
	Group    *models.ParticipantGroup
	Consents []consent.ParticipantConsent
	Coverage []Coverage
}

type DeploymentService struct {
	api carp.API
	log *zap.Logger
}

func NewDeploymentService(api carp.API, log *zap.Logger) *DeploymentService {
	return &DeploymentService{api: api, log: log}
}

// Load builds the deployment page.
func (s *DeploymentService) Load(ctx context.Context, studyID, deploymentID string) (*DeploymentView, error) {
	snap, err := fetch(ctx, s.api, studyID, deploymentID)
	if err != nil {
		s.log.Error("Failed to load deployment",
			zap.String("studyId", studyID),
			zap.String("deploymentId", deploymentID),
			zap.Error(err))
		return nil, err
	}
	group, err := snap.group(deploymentID)
	if err != nil {
		return nil, err
	}

	return &DeploymentView{
		StudyID:  studyID,
		Study:    snap.study,
		Group:    group,
		Consents: consent.Associate(group, snap.data, s.log),
		Coverage: coverage(snap.study.ExpectedDataTypes(), group, snap.data),
	}, nil
}

// Consent returns a participant's account and the informed consent that applies to them.
func (s *DeploymentService) Consent(ctx context.Context, key ParticipantKey) (models.ParticipantAccount, *models.InformedConsent, error) {
	snap, err := fetch(ctx, s.api, key.StudyID, key.DeploymentID)
	if err != nil {
		return models.ParticipantAccount{}, nil, err
	}
	group, err := snap.group(key.DeploymentID)
	if err != nil {
		return models.ParticipantAccount{}, nil, err
	}
	return consent.ForParticipant(group, snap.data, key.ParticipantID, s.log)
}

// coverage counts, per expected data type, the participants with a non-null
// value visible to their role. Informed consent is counted like any other type.
func coverage(expected []models.InputDataType, group *models.ParticipantGroup, data *models.ParticipantData) []Coverage {
	roles := make(map[string]string, len(group.DeploymentStatus.ParticipantStatusList))
	for _, p := range group.DeploymentStatus.ParticipantStatusList {
		roles[p.ParticipantID] = p.PrimaryRole()
	}

	provided := make(map[string]int)
	for _, p := range group.Participants {
		role, ok := roles[p.ParticipantID]
		if !ok {
			role = p.Role
		}
		for name := range storedTypes(data, role) {
			provided[name]++
		}
	}

	out := make([]Coverage, 0, len(expected))
	seen := make(map[string]bool, len(expected))
	for _, t := range expected {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, Coverage{
			Type:     t,
			Label:    participantdata.LabelForName(t.Name),
			Provided: provided[t.Name],
			Total:    len(group.Participants),
		})
	}
	return out
}

// storedTypes returns the names of the data types with a non-null value for a role.
func storedTypes(data *models.ParticipantData, role string) map[string]bool {
	names := map[string]bool{}
	if data == nil {
		return names
	}
	for tag, raw := range data.Common {
		if !models.IsNull(raw) {
			names[participantdata.NameFromTag(tag)] = true
		}
	}
	if roleData, ok := data.Role(role); ok {
		for tag, raw := range roleData {
			if !models.IsNull(raw) {
				names[participantdata.NameFromTag(tag)] = true
			}
		}
	}
	return names
}
