package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// SubmissionAudit records one participant-data submission made through the portal.
type SubmissionAudit struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudyID       string         `gorm:"index" json:"studyId"`
	DeploymentID  string         `gorm:"index" json:"deploymentId"`
	ParticipantID string         `json:"participantId"`
	Role          string         `json:"role"`
	Tags          pq.StringArray `gorm:"type:text[]" json:"tags"`
	ClearedTags   pq.StringArray `gorm:"type:text[]" json:"clearedTags"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	RequestID     string         `json:"requestId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
