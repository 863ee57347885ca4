package repository

import (
	"context"
	"os"
	"testing"

	"github.com/cph-cachet/carp-portal/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultAuditLimit, clampLimit(0))
	assert.Equal(t, defaultAuditLimit, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxAuditLimit, clampLimit(10_000))
}

// Runs against a real postgres when CARP_PORTAL_TEST_DSN is set.
func TestSubmissionAuditsPostgres(t *testing.T) {
	dsn := os.Getenv("CARP_PORTAL_TEST_DSN")
	if dsn == "" {
		t.Skip("CARP_PORTAL_TEST_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SubmissionAudit{}))

	deploymentID := uuid.NewString()
	t.Cleanup(func() {
		db.Where("deployment_id = ?", deploymentID).Delete(&models.SubmissionAudit{})
	})

	repo := NewSubmissionAudits(db)
	ctx := context.Background()
	for _, tag := range []string{"first", "second"} {
		require.NoError(t, repo.RecordSubmission(ctx, &models.SubmissionAudit{
			StudyID:      uuid.NewString(),
			DeploymentID: deploymentID,
			Role:         "Patient",
			Tags:         []string{"dk.carp.webservices.input." + tag},
			Payload:      datatypes.JSON(`{}`),
		}))
	}

	audits, err := repo.ListForDeployment(ctx, deploymentID, 0)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "dk.carp.webservices.input.second", audits[0].Tags[0])
	assert.NotEqual(t, uuid.Nil, audits[0].ID)
}
