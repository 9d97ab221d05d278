package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rowan/attest/internal/api/handler"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/cache"
	"github.com/rowan/attest/internal/repository"
	"github.com/rowan/attest/internal/service"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Orchestrator *service.OrchestratorService
	Requirements *service.RequirementsService
	Broker       *service.JobBroker
	Jobs         *repository.JobRepository
	Claims       *repository.ClaimRepository
	Views        *cache.Cache
	CORS         middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *RouterDeps, mode string) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(deps.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	documentHandler := handler.NewDocumentHandler(deps.Orchestrator)
	jobHandler := handler.NewJobHandler(deps.Jobs, deps.Broker)
	claimHandler := handler.NewClaimHandler(deps.Claims, deps.Views)
	requirementsHandler := handler.NewRequirementsHandler(deps.Requirements)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes; everything below requires an owner identity
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireOwner())
	{
		// Documents
		v1.POST("/documents", documentHandler.Submit)
		v1.POST("/documents/stream", documentHandler.SubmitStream)

		// Jobs
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.GET("/jobs/:id/watch", jobHandler.Watch)

		// Claims
		v1.GET("/claims", claimHandler.List)
		v1.GET("/claims/overview", claimHandler.Overview)
		v1.GET("/claims/:id/evidence", claimHandler.Evidence)

		// Requirement scoring
		v1.POST("/requirements/score", requirementsHandler.Score)
	}

	return r
}
