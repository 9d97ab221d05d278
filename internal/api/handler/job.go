package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/repository"
	"github.com/rowan/attest/internal/service"
	"gorm.io/gorm"
)

// JobHandler handles job read and watch endpoints.
type JobHandler struct {
	jobs   *repository.JobRepository
	broker *service.JobBroker
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job repository instance.
//   - broker: job row pub/sub.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *repository.JobRepository, broker *service.JobBroker) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		broker: broker,
	}
}

// Get handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job.OwnerID != middleware.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Watch handles GET /api/v1/jobs/:id/watch: a row subscription over SSE.
// The client gets an initial snapshot followed by every durable update, and
// the stream closes once the job reaches a terminal status. This is the
// second read path for clients that lost the original submission stream; it
// observes the same terminal state because the orchestrator publishes only
// after the row write.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes SSE stream).
func (h *JobHandler) Watch(c *gin.Context) {
	jobID := c.Param("id")

	// Subscribe before the snapshot read so no update can fall in between
	updates, cancel := h.broker.Subscribe(jobID)
	defer cancel()

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job.OwnerID != middleware.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	sse, err := newSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := sse.writeEvent("job", job); err != nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.writeEvent("job", update); err != nil {
				return
			}
			if update.Status.Terminal() {
				return
			}
		}
	}
}
