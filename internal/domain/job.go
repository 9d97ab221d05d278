package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the status of a processing job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted,
// and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPhase is the sub-stage of a job while it is processing.
type JobPhase string

const (
	JobPhaseValidating JobPhase = "validating"
	JobPhaseExtracting JobPhase = "extracting"
	JobPhaseEmbeddings JobPhase = "embeddings"
	JobPhaseSynthesis  JobPhase = "synthesis"
)

// HighlightKind tags a highlight message with the decision that produced it.
type HighlightKind string

const (
	HighlightFound   HighlightKind = "found"
	HighlightCreated HighlightKind = "created"
	HighlightUpdated HighlightKind = "updated"
)

// Highlight is one short human-readable progress message surfaced to callers.
type Highlight struct {
	Kind    HighlightKind `json:"kind"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

// HighlightList is an append-only ordered list of highlights stored as a JSON
// column on the job row.
type HighlightList []Highlight

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the list.
//   - error: non-nil if marshaling fails.
func (h HighlightList) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (h *HighlightList) Scan(value interface{}) error {
	if value == nil {
		*h = HighlightList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan HighlightList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, h)
}

// Job is the live-progress projection of a document's processing run. It is
// the only entity external readers poll or subscribe to; every mutation the
// orchestrator makes lands here, not only in the event stream. Exactly one
// job is live per document at a time.
type Job struct {
	ID         string        `gorm:"type:text;primaryKey" json:"id"`
	OwnerID    string        `gorm:"type:text;not null;index:idx_jobs_owner" json:"owner_id"`
	DocumentID string        `gorm:"type:text;index:idx_jobs_document" json:"document_id,omitempty"`
	Kind       DocumentKind  `gorm:"type:text;not null" json:"kind"`
	Status     JobStatus     `gorm:"type:text;index:idx_jobs_status;default:pending" json:"status"`
	Phase      JobPhase      `gorm:"type:text" json:"phase,omitempty"`
	Progress   string        `gorm:"type:text" json:"progress,omitempty"`
	Highlights HighlightList `gorm:"type:text" json:"highlights"`
	Error      string        `gorm:"type:text" json:"error,omitempty"`
	Warning    string        `gorm:"type:text" json:"warning,omitempty"`

	// Summary fields, populated only on success.
	EvidenceCount int `gorm:"default:0" json:"evidence_count"`
	ClaimsCreated int `gorm:"default:0" json:"claims_created"`
	ClaimsUpdated int `gorm:"default:0" json:"claims_updated"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Job) TableName() string {
	return "jobs"
}
