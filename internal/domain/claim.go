package domain

import "time"

// ClaimType classifies a durable assertion about an owner.
type ClaimType string

const (
	ClaimTypeSkill         ClaimType = "skill"
	ClaimTypeAchievement   ClaimType = "achievement"
	ClaimTypeAttribute     ClaimType = "attribute"
	ClaimTypeEducation     ClaimType = "education"
	ClaimTypeCertification ClaimType = "certification"
)

// LinkStrength is the qualitative strength tag on a claim-evidence link,
// used downstream by grounding checks.
type LinkStrength string

const (
	LinkStrengthWeak   LinkStrength = "weak"
	LinkStrengthMedium LinkStrength = "medium"
	LinkStrengthStrong LinkStrength = "strong"
)

// Claim represents a durable, evolving assertion about an owner, built from
// one or more evidence items. Confidence is raised monotonically as new
// corroborating evidence arrives; the pipeline never deletes claims.
type Claim struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	OwnerID     string    `gorm:"type:text;not null;index:idx_claims_owner" json:"owner_id"`
	Type        ClaimType `gorm:"type:text;not null;index:idx_claims_type" json:"type"`
	Label       string    `gorm:"type:text;not null" json:"label"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Confidence  float64   `gorm:"not null" json:"confidence"`
	Embedding   Vector    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Claim.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Claim) TableName() string {
	return "claims"
}

// ClaimEvidence records which evidence items support which claim. Created
// exactly once per (claim, evidence) pair; append-only.
type ClaimEvidence struct {
	ID         string       `gorm:"type:text;primaryKey" json:"id"`
	ClaimID    string       `gorm:"type:text;not null;uniqueIndex:idx_claim_evidence_pair;index:idx_claim_evidence_claim" json:"claim_id"`
	EvidenceID string       `gorm:"type:text;not null;uniqueIndex:idx_claim_evidence_pair" json:"evidence_id"`
	Strength   LinkStrength `gorm:"type:text;not null" json:"strength"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TableName returns the database table name for ClaimEvidence.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ClaimEvidence) TableName() string {
	return "claim_evidence"
}
