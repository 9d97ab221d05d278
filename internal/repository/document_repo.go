package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rowan/attest/internal/domain"
	"gorm.io/gorm"
)

// ErrDuplicateDocument is returned when an owner resubmits content whose
// fingerprint already exists. SubmittedAt names the original submission so
// callers can surface it in the conflict message.
type ErrDuplicateDocument struct {
	DocumentID  string
	SubmittedAt time.Time
}

func (e *ErrDuplicateDocument) Error() string {
	return fmt.Sprintf("duplicate document: identical content was submitted on %s",
		e.SubmittedAt.Format("2006-01-02"))
}

// DocumentRepository handles document row operations.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DocumentRepository: repository instance bound to db.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row. The insert itself is the duplicate
// check: the unique index on (owner_id, fingerprint) serializes concurrent
// identical submissions, and the constraint violation is translated into
// *ErrDuplicateDocument naming the original submission date.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - doc: document record to persist.
// Returns:
//   - error: *ErrDuplicateDocument on fingerprint collision, otherwise any
//     insert failure.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	err := r.db.WithContext(ctx).Create(doc).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, lookupErr := r.GetByFingerprint(ctx, doc.OwnerID, doc.Fingerprint)
		if lookupErr != nil {
			return fmt.Errorf("duplicate document, failed to load original: %w", lookupErr)
		}
		return &ErrDuplicateDocument{DocumentID: existing.ID, SubmittedAt: existing.CreatedAt}
	}
	return err
}

// GetByID retrieves a document by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: document ID.
// Returns:
//   - *domain.Document: document record if found.
//   - error: non-nil if lookup fails.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByFingerprint retrieves a document by owner and content fingerprint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner the document belongs to.
//   - fingerprint: normalized content digest.
// Returns:
//   - *domain.Document: document record if found.
//   - error: non-nil if lookup fails.
func (r *DocumentRepository) GetByFingerprint(ctx context.Context, ownerID, fingerprint string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).
		First(&doc, "owner_id = ? AND fingerprint = ?", ownerID, fingerprint).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateStatus sets the lifecycle status of a document.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: document ID.
//   - status: new lifecycle status.
// Returns:
//   - error: non-nil if the update fails.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// UpdateArchiveKey records the object-storage key the raw text was archived under.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: document ID.
//   - key: object storage key.
// Returns:
//   - error: non-nil if the update fails.
func (r *DocumentRepository) UpdateArchiveKey(ctx context.Context, id string, key string) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", id).
		Update("archive_key", key).Error
}

// ListByOwner retrieves an owner's documents, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner to filter by.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Document: matching document records.
//   - error: non-nil if the query fails.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Document, error) {
	var docs []domain.Document
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
