package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/repository"
	"github.com/rowan/attest/internal/service"
)

// DocumentHandler handles document submission endpoints.
type DocumentHandler struct {
	orchestrator *service.OrchestratorService
}

// NewDocumentHandler creates a new document handler.
// Parameters:
//   - orchestrator: pipeline orchestrator instance.
// Returns:
//   - *DocumentHandler: initialized handler.
func NewDocumentHandler(orchestrator *service.OrchestratorService) *DocumentHandler {
	return &DocumentHandler{
		orchestrator: orchestrator,
	}
}

type submitRequest struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// Submit handles POST /api/v1/documents. Processing continues
// asynchronously; the response carries the identifiers to poll or watch.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DocumentHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.orchestrator.Submit(c.Request.Context(), &service.SubmitRequest{
		OwnerID: middleware.OwnerID(c),
		Text:    req.Text,
		Kind:    domain.DocumentKind(req.Kind),
	})
	if err != nil {
		writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// SubmitStream handles POST /api/v1/documents/stream: the same submission,
// with phase/highlight/error/done events multiplexed inline over SSE. Pure
// validation failures are plain JSON errors before any streaming begins.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes SSE stream).
func (h *DocumentHandler) SubmitStream(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, events, err := h.orchestrator.SubmitStream(c.Request.Context(), &service.SubmitRequest{
		OwnerID: middleware.OwnerID(c),
		Text:    req.Text,
		Kind:    domain.DocumentKind(req.Kind),
	})
	if err != nil {
		writeSubmitError(c, err)
		return
	}

	sse, err := newSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// First event carries the identifiers so a dropped stream can reattach
	// via the watch endpoint
	sse.writeEvent("accepted", result)

	for event := range events {
		if err := sse.writeEvent(string(event.Type), event); err != nil {
			// Client gone; the pipeline keeps running and the job row
			// remains the source of truth
			return
		}
		if event.Type == service.EventDone || event.Type == service.EventError {
			return
		}
	}
}

// writeSubmitError maps the submission error taxonomy onto status codes:
// validation 400, duplicate 409, everything else 500.
func writeSubmitError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		return
	}

	var dup *repository.ErrDuplicateDocument
	if errors.As(err, &dup) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       dup.Error(),
			"document_id": dup.DocumentID,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Submission failed: " + err.Error(),
	})
}
