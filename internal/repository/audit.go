package repository

import (
	"context"

	"github.com/cph-cachet/carp-portal/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// SubmissionAudits stores the audit trail of participant data submissions.
type SubmissionAudits struct {
	db *gorm.DB
}

func NewSubmissionAudits(db *gorm.DB) *SubmissionAudits {
	return &SubmissionAudits{db: db}
}

// RecordSubmission inserts one audit row.
func (r *SubmissionAudits) RecordSubmission(ctx context.Context, audit *models.SubmissionAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(audit).Error
}

// ListForDeployment returns the latest submissions of a deployment, newest first.
func (r *SubmissionAudits) ListForDeployment(ctx context.Context, deploymentID string, limit int) ([]models.SubmissionAudit, error) {
	var audits []models.SubmissionAudit
	err := r.db.WithContext(ctx).
		Where("deployment_id = ?", deploymentID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&audits).Error
	return audits, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultAuditLimit
	case limit > maxAuditLimit:
		return maxAuditLimit
	}
	return limit
}
