package carp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingAPI struct {
	study, groups, data, sets int
	fail                      error
}

func (a *countingAPI) GetStudyDetails(_ context.Context, studyID string) (*models.StudyDetails, error) {
	a.study++
	if a.fail != nil {
		return nil, a.fail
	}
	return &models.StudyDetails{StudyID: studyID}, nil
}

func (a *countingAPI) GetParticipantGroupStatus(_ context.Context, _ string) (*models.ParticipantGroupStatusList, error) {
	a.groups++
	return &models.ParticipantGroupStatusList{}, nil
}

func (a *countingAPI) GetParticipantData(_ context.Context, deploymentID string) (*models.ParticipantData, error) {
	a.data++
	return &models.ParticipantData{StudyDeploymentID: deploymentID}, nil
}

func (a *countingAPI) SetParticipantData(_ context.Context, deploymentID string, _ participantdata.Submission) (*models.ParticipantData, error) {
	a.sets++
	return &models.ParticipantData{StudyDeploymentID: deploymentID}, nil
}

func TestCachedClientReusesReads(t *testing.T) {
	api := &countingAPI{}
	c := NewCachedClient(api, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GetStudyDetails(ctx, "s")
		require.NoError(t, err)
		_, err = c.GetParticipantGroupStatus(ctx, "s")
		require.NoError(t, err)
		_, err = c.GetParticipantData(ctx, "d")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, api.study)
	assert.Equal(t, 1, api.groups)
	assert.Equal(t, 1, api.data)
}

func TestCachedClientInvalidateDeployment(t *testing.T) {
	api := &countingAPI{}
	c := NewCachedClient(api, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, _ = c.GetStudyDetails(ctx, "s")
	_, _ = c.GetParticipantGroupStatus(ctx, "s")
	_, _ = c.GetParticipantData(ctx, "d")

	c.InvalidateDeployment("s", "d")

	_, _ = c.GetStudyDetails(ctx, "s")
	_, _ = c.GetParticipantGroupStatus(ctx, "s")
	_, _ = c.GetParticipantData(ctx, "d")

	assert.Equal(t, 1, api.study)
	assert.Equal(t, 2, api.groups)
	assert.Equal(t, 2, api.data)
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	api := &countingAPI{fail: errors.New("boom")}
	c := NewCachedClient(api, time.Minute, zap.NewNop())

	_, err := c.GetStudyDetails(context.Background(), "s")
	assert.Error(t, err)
	_, err = c.GetStudyDetails(context.Background(), "s")
	assert.Error(t, err)

	assert.Equal(t, 2, api.study)
}

func TestCachedClientPassesWritesThrough(t *testing.T) {
	api := &countingAPI{}
	c := NewCachedClient(api, time.Minute, zap.NewNop())

	_, err := c.SetParticipantData(context.Background(), "d", participantdata.Submission{})
	require.NoError(t, err)
	_, err = c.SetParticipantData(context.Background(), "d", participantdata.Submission{})
	require.NoError(t, err)

	assert.Equal(t, 2, api.sets)
}
