package repository

import (
	"context"

	"github.com/rowan/attest/internal/domain"
	"gorm.io/gorm"
)

// EvidenceRepository handles evidence row operations. Evidence is immutable
// once stored, so the repository exposes no update methods.
type EvidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository creates a new EvidenceRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EvidenceRepository: repository instance bound to db.
func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// CreateBatch inserts a batch of evidence rows in one statement. The
// orchestrator calls this exactly once per job, after embedding succeeds, so
// evidence is never persisted without its vector.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - items: evidence rows to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *EvidenceRepository) CreateBatch(ctx context.Context, items []domain.Evidence) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// GetByID retrieves an evidence row by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: evidence ID.
// Returns:
//   - *domain.Evidence: evidence record if found.
//   - error: non-nil if lookup fails.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*domain.Evidence, error) {
	var ev domain.Evidence
	if err := r.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListByDocument retrieves the evidence produced by a document.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - documentID: source document ID.
// Returns:
//   - []domain.Evidence: matching evidence rows.
//   - error: non-nil if the query fails.
func (r *EvidenceRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Evidence, error) {
	var items []domain.Evidence
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountByDocument counts the evidence rows stored for a document.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - documentID: source document ID.
// Returns:
//   - int64: number of matching rows.
//   - error: non-nil if the query fails.
func (r *EvidenceRepository) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Evidence{}).
		Where("document_id = ?", documentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
