package domain

import "time"

// DocumentKind represents the kind of submitted text artifact.
// Values include DocumentKindResume and DocumentKindStory.
type DocumentKind string

const (
	DocumentKindResume DocumentKind = "resume"
	DocumentKindStory  DocumentKind = "story"
)

// DocumentStatus represents the processing status of a document record.
// Values include DocumentStatusPending, DocumentStatusProcessing,
// DocumentStatusCompleted, and DocumentStatusFailed.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents one submitted artifact (resume or story).
// The (owner_id, fingerprint) unique index is the duplicate-detection
// mechanism: a second submission of identical content for the same owner
// fails the insert rather than passing a read-then-write check.
type Document struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	OwnerID     string         `gorm:"type:text;not null;index:idx_documents_owner;uniqueIndex:idx_documents_owner_fingerprint" json:"owner_id"`
	Kind        DocumentKind   `gorm:"type:text;not null" json:"kind"`
	RawText     string         `gorm:"type:text;not null" json:"raw_text"`
	Fingerprint string         `gorm:"type:text;not null;uniqueIndex:idx_documents_owner_fingerprint" json:"fingerprint"`
	ArchiveKey  string         `gorm:"type:text" json:"archive_key,omitempty"`
	Status      DocumentStatus `gorm:"type:text;index:idx_documents_status;default:pending" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Document.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Document) TableName() string {
	return "documents"
}
