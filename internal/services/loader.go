package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/models"

	"golang.org/x/sync/errgroup"
)

var (
	ErrDeploymentNotFound  = errors.New("deployment not found in study")
	ErrParticipantNotFound = errors.New("participant not found in deployment")
)

// Sources of a LoadError, in the order their errors take precedence.
const (
	SourceStudy            = "study"
	SourceParticipantData  = "participant data"
	SourceParticipantGroup = "participant group status"
)

// LoadError reports which backend read failed while loading a page.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// snapshot is the backend state a deployment page is built from.
type snapshot struct {
	study  *models.StudyDetails
	data   *models.ParticipantData
	groups *models.ParticipantGroupStatusList
}

// fetch runs the three reads concurrently. A failing read does not cancel the
// others; when several fail, the study error wins over the participant data
// error, which wins over the group status error.
func fetch(ctx context.Context, api carp.API, studyID, deploymentID string) (*snapshot, error) {
	var (
		snap                        snapshot
		studyErr, dataErr, groupErr error
		g                           errgroup.Group
	)

	g.Go(func() error {
		snap.study, studyErr = api.GetStudyDetails(ctx, studyID)
		return nil
	})
	g.Go(func() error {
		snap.data, dataErr = api.GetParticipantData(ctx, deploymentID)
		return nil
	})
	g.Go(func() error {
		snap.groups, groupErr = api.GetParticipantGroupStatus(ctx, studyID)
		return nil
	})
	_ = g.Wait()

	switch {
	case studyErr != nil:
		return nil, &LoadError{Source: SourceStudy, Err: studyErr}
	case dataErr != nil:
		return nil, &LoadError{Source: SourceParticipantData, Err: dataErr}
	case groupErr != nil:
		return nil, &LoadError{Source: SourceParticipantGroup, Err: groupErr}
	}
	return &snap, nil
}

func (s *snapshot) group(deploymentID string) (*models.ParticipantGroup, error) {
	group, ok := s.groups.Group(deploymentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentID)
	}
	return group, nil
}

// invalidator is implemented by API wrappers that cache reads.
type invalidator interface {
	InvalidateDeployment(studyID, deploymentID string)
}

func invalidate(api carp.API, studyID, deploymentID string) {
	if inv, ok := api.(invalidator); ok {
		inv.InvalidateDeployment(studyID, deploymentID)
	}
}
