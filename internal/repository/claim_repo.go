package repository

import (
	"context"

	"github.com/rowan/attest/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimRepository handles claim and claim-evidence link operations.
type ClaimRepository struct {
	db *gorm.DB
}

// NewClaimRepository creates a new ClaimRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ClaimRepository: repository instance bound to db.
func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a new claim row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - claim: claim record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// GetByID retrieves a claim by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: claim ID.
// Returns:
//   - *domain.Claim: claim record if found.
//   - error: non-nil if lookup fails.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	var claim domain.Claim
	if err := r.db.WithContext(ctx).First(&claim, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

// UpdateConfidence sets a claim's confidence score. Callers are responsible
// for the monotonicity policy; the repository only persists the value.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: claim ID.
//   - confidence: new confidence in [0,1].
// Returns:
//   - error: non-nil if the update fails.
func (r *ClaimRepository) UpdateConfidence(ctx context.Context, id string, confidence float64) error {
	return r.db.WithContext(ctx).Model(&domain.Claim{}).
		Where("id = ?", id).
		Update("confidence", confidence).Error
}

// Link records that an evidence item supports a claim. The link is created
// exactly once per (claim, evidence) pair; a replayed link is a no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - link: claim-evidence link to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ClaimRepository) Link(ctx context.Context, link *domain.ClaimEvidence) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "claim_id"}, {Name: "evidence_id"}},
		DoNothing: true,
	}).Create(link).Error
}

// Delete removes a claim row and any evidence links pointing at it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: claim ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ClaimRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("claim_id = ?", id).Delete(&domain.ClaimEvidence{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Claim{}).Error
}

// ListByOwner retrieves an owner's claims, optionally filtered by type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner to filter by.
//   - claimType: type filter; empty means all types.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Claim: matching claim rows ordered by descending confidence.
//   - error: non-nil if the query fails.
func (r *ClaimRepository) ListByOwner(ctx context.Context, ownerID string, claimType domain.ClaimType, limit, offset int) ([]domain.Claim, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if claimType != "" {
		query = query.Where("type = ?", claimType)
	}
	var claims []domain.Claim
	if err := query.
		Order("confidence DESC").
		Limit(limit).
		Offset(offset).
		Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// ListEvidenceForClaim retrieves the evidence rows linked to a claim,
// together with the link strength recorded for each.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - claimID: claim ID.
// Returns:
//   - []LinkedEvidence: evidence joined with link strength.
//   - error: non-nil if the query fails.
func (r *ClaimRepository) ListEvidenceForClaim(ctx context.Context, claimID string) ([]LinkedEvidence, error) {
	var out []LinkedEvidence
	err := r.db.WithContext(ctx).
		Table("evidence").
		Select("evidence.*, claim_evidence.strength AS strength").
		Joins("JOIN claim_evidence ON claim_evidence.evidence_id = evidence.id").
		Where("claim_evidence.claim_id = ?", claimID).
		Order("claim_evidence.created_at ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LinkedEvidence is an evidence row annotated with its link strength.
type LinkedEvidence struct {
	domain.Evidence
	Strength domain.LinkStrength `json:"strength"`
}

// CountByType counts an owner's claims grouped by type.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner to filter by.
// Returns:
//   - map[domain.ClaimType]int64: claim counts keyed by type.
//   - error: non-nil if the query fails.
func (r *ClaimRepository) CountByType(ctx context.Context, ownerID string) (map[domain.ClaimType]int64, error) {
	type row struct {
		Type  domain.ClaimType
		Count int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&domain.Claim{}).
		Select("type, COUNT(*) AS count").
		Where("owner_id = ?", ownerID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.ClaimType]int64, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}

// AverageConfidence computes the mean confidence over an owner's claims.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner to filter by.
// Returns:
//   - float64: average confidence, 0 when the owner has no claims.
//   - error: non-nil if the query fails.
func (r *ClaimRepository) AverageConfidence(ctx context.Context, ownerID string) (float64, error) {
	var avg *float64
	if err := r.db.WithContext(ctx).Model(&domain.Claim{}).
		Select("AVG(confidence)").
		Where("owner_id = ?", ownerID).
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
