package repository

import (
	"context"
	"time"

	"github.com/rowan/attest/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles job row operations. The job row is the single source
// of truth for readers that miss the live stream, so every orchestrator
// mutation goes through here.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: non-nil if lookup fails.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Save persists the full job row. The orchestrator mutates its in-memory job
// and saves it after every state change; highlights are an append-only JSON
// column so the whole row is written each time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(job).Error
}

// ListByOwner retrieves an owner's jobs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner to filter by.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Job: matching job rows.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
