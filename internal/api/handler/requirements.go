package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/service"
)

const maxRequirementsPerCall = 50

// RequirementsHandler handles opportunity-requirement scoring.
type RequirementsHandler struct {
	requirements *service.RequirementsService
}

// NewRequirementsHandler creates a new requirements handler.
// Parameters:
//   - requirements: requirement scoring service.
// Returns:
//   - *RequirementsHandler: initialized handler.
func NewRequirementsHandler(requirements *service.RequirementsService) *RequirementsHandler {
	return &RequirementsHandler{
		requirements: requirements,
	}
}

type scoreRequest struct {
	Requirements []string `json:"requirements"`
}

// Score handles POST /api/v1/requirements/score.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RequirementsHandler) Score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Requirements) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirements must be non-empty"})
		return
	}
	if len(req.Requirements) > maxRequirementsPerCall {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many requirements, maximum is 50"})
		return
	}

	scores, err := h.requirements.Score(c.Request.Context(), middleware.OwnerID(c), req.Requirements)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scoring failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores": scores,
		"total":  len(scores),
	})
}
