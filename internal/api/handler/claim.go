package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/cache"
	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/repository"
	"gorm.io/gorm"
)

// ClaimHandler handles claim read endpoints.
type ClaimHandler struct {
	claims *repository.ClaimRepository
	views  *cache.Cache
}

// NewClaimHandler creates a new claim handler.
// Parameters:
//   - claims: claim repository instance.
//   - views: TTL cache for aggregate views; the orchestrator invalidates it
//     whenever an owner's claim graph changes.
// Returns:
//   - *ClaimHandler: initialized handler.
func NewClaimHandler(claims *repository.ClaimRepository, views *cache.Cache) *ClaimHandler {
	return &ClaimHandler{
		claims: claims,
		views:  views,
	}
}

// List handles GET /api/v1/claims.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ClaimHandler) List(c *gin.Context) {
	owner := middleware.OwnerID(c)

	limit := parseIntQuery(c, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := parseIntQuery(c, "offset", 0)

	claimType := domain.ClaimType(c.Query("type"))

	claims, err := h.claims.ListByOwner(c.Request.Context(), owner, claimType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list claims: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claims": claims,
		"total":  len(claims),
	})
}

// Evidence handles GET /api/v1/claims/:id/evidence.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ClaimHandler) Evidence(c *gin.Context) {
	claim, err := h.claims.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if claim.OwnerID != middleware.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
		return
	}

	evidence, err := h.claims.ListEvidenceForClaim(c.Request.Context(), claim.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list evidence: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claim":    claim,
		"evidence": evidence,
		"total":    len(evidence),
	})
}

// claimOverview is the cached per-owner aggregate.
type claimOverview struct {
	Total             int64                      `json:"total"`
	ByType            map[domain.ClaimType]int64 `json:"by_type"`
	AverageConfidence float64                    `json:"average_confidence"`
}

// Overview handles GET /api/v1/claims/overview. Responses are served from
// the TTL cache when present.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ClaimHandler) Overview(c *gin.Context) {
	owner := middleware.OwnerID(c)
	cacheKey := owner + ":overview"

	if cached, ok := h.views.Get(cacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	counts, err := h.claims.CountByType(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build overview: " + err.Error()})
		return
	}

	avg, err := h.claims.AverageConfidence(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build overview: " + err.Error()})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	overview := claimOverview{
		Total:             total,
		ByType:            counts,
		AverageConfidence: avg,
	}

	h.views.Set(cacheKey, overview)
	c.JSON(http.StatusOK, overview)
}

// parseIntQuery reads an integer query parameter with a default.
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
