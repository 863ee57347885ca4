package carp

import (
	"context"
	"time"

	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var _ API = (*CachedClient)(nil)

// CachedClient keeps CARP reads for a short while so that page loads sharing
// a study do not refetch it. Cached values are shared; callers must not modify them.
type CachedClient struct {
	api   API
	cache *cache.Cache
	log   *zap.Logger
}

func NewCachedClient(api API, ttl time.Duration, log *zap.Logger) *CachedClient {
	return &CachedClient{
		api:   api,
		cache: cache.New(ttl, 2*ttl),
		log:   log.Named("carp-cache"),
	}
}

func studyDetailsKey(studyID string) string         { return "studyDetails:" + studyID }
func groupStatusKey(studyID string) string          { return "participantGroupStatus:" + studyID }
func participantDataKey(deploymentID string) string { return "participantData:" + deploymentID }

func (c *CachedClient) GetStudyDetails(ctx context.Context, studyID string) (*models.StudyDetails, error) {
	return cached(c, studyDetailsKey(studyID), func() (*models.StudyDetails, error) {
		return c.api.GetStudyDetails(ctx, studyID)
	})
}

func (c *CachedClient) GetParticipantGroupStatus(ctx context.Context, studyID string) (*models.ParticipantGroupStatusList, error) {
	return cached(c, groupStatusKey(studyID), func() (*models.ParticipantGroupStatusList, error) {
		return c.api.GetParticipantGroupStatus(ctx, studyID)
	})
}

func (c *CachedClient) GetParticipantData(ctx context.Context, deploymentID string) (*models.ParticipantData, error) {
	return cached(c, participantDataKey(deploymentID), func() (*models.ParticipantData, error) {
		return c.api.GetParticipantData(ctx, deploymentID)
	})
}

// SetParticipantData is never cached. Callers invalidate the deployment once
// the write went through.
func (c *CachedClient) SetParticipantData(ctx context.Context, deploymentID string, sub participantdata.Submission) (*models.ParticipantData, error) {
	return c.api.SetParticipantData(ctx, deploymentID, sub)
}

// InvalidateDeployment drops the participant group status of the study and the
// participant data of the deployment.
func (c *CachedClient) InvalidateDeployment(studyID, deploymentID string) {
	c.cache.Delete(groupStatusKey(studyID))
	c.cache.Delete(participantDataKey(deploymentID))
	c.log.Debug("Invalidated cached deployment",
		zap.String("studyId", studyID),
		zap.String("deploymentId", deploymentID))
}

func cached[T any](c *CachedClient, key string, fetch func() (*T, error)) (*T, error) {
	if v, ok := c.cache.Get(key); ok {
		return v.(*T), nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, v)
	return v, nil
}
