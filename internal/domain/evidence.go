package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// EvidenceType classifies an atomic factual statement extracted from a document.
type EvidenceType string

const (
	EvidenceTypeAccomplishment EvidenceType = "accomplishment"
	EvidenceTypeSkillListed    EvidenceType = "skill_listed"
	EvidenceTypeTraitIndicator EvidenceType = "trait_indicator"
	EvidenceTypeEducation      EvidenceType = "education"
	EvidenceTypeCertification  EvidenceType = "certification"
)

// KnownEvidenceType reports whether t is one of the recognized evidence types.
func KnownEvidenceType(t EvidenceType) bool {
	switch t {
	case EvidenceTypeAccomplishment, EvidenceTypeSkillListed, EvidenceTypeTraitIndicator,
		EvidenceTypeEducation, EvidenceTypeCertification:
		return true
	}
	return false
}

// EvidenceContext carries optional structured context attached to an evidence
// item, stored as a JSON column.
type EvidenceContext struct {
	Role        string `json:"role,omitempty"`
	Company     string `json:"company,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Institution string `json:"institution,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the context.
//   - error: non-nil if marshaling fails.
func (c EvidenceContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (c *EvidenceContext) Scan(value interface{}) error {
	if value == nil {
		*c = EvidenceContext{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan EvidenceContext")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, c)
}

// Evidence represents one atomic factual statement extracted from a document.
// Rows are immutable once stored and owned by the document that produced them.
type Evidence struct {
	ID         string          `gorm:"type:text;primaryKey" json:"id"`
	OwnerID    string          `gorm:"type:text;not null;index:idx_evidence_owner" json:"owner_id"`
	DocumentID string          `gorm:"type:text;not null;index:idx_evidence_document" json:"document_id"`
	Type       EvidenceType    `gorm:"type:text;not null" json:"type"`
	Text       string          `gorm:"type:text;not null" json:"text"`
	Context    EvidenceContext `gorm:"type:text" json:"context"`
	Embedding  Vector          `gorm:"type:text" json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName returns the database table name for Evidence.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Evidence) TableName() string {
	return "evidence"
}
