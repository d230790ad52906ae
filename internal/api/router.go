// Package api exposes the HTTP surface: the sweep trigger, the job process
// endpoint, job status queries, and entity analytics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/mindshare/internal/config"
	"github.com/jonesrussell/mindshare/internal/database"
	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/executor"
	"github.com/jonesrussell/mindshare/internal/logger"
	"github.com/jonesrussell/mindshare/internal/scheduler"
)

const (
	healthCheckTimeout = 2 * time.Second
	serviceName        = "mindshare"
	serviceVersion     = "1.0.0"
)

// Sweeper triggers a scheduler sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*scheduler.SweepResult, error)
}

// Processor executes one job by id.
type Processor interface {
	Process(ctx context.Context, jobID string) (*executor.Outcome, error)
}

// JobLister serves the status query.
type JobLister interface {
	List(ctx context.Context, filter database.JobFilter) ([]database.JobDetail, error)
}

// EntityReader serves the top-entities query.
type EntityReader interface {
	TopEntities(ctx context.Context, category string, limit int) ([]domain.Entity, error)
}

// AnalyticsReader serves per-prompt response analytics.
type AnalyticsReader interface {
	PromptAnalytics(ctx context.Context, promptID string) ([]database.PromptEntityStat, error)
}

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds the API dependencies.
type Router struct {
	sweeper        Sweeper
	processor      Processor
	jobs           JobLister
	entities       EntityReader
	analytics      AnalyticsReader
	db             Pinger
	redis          Pinger
	metricsHandler http.Handler
	cfg            *config.Config
	logger         logger.Logger
}

// NewRouter creates a new API router. metricsHandler may be nil to disable
// the /metrics endpoint.
func NewRouter(
	sweeper Sweeper,
	processor Processor,
	jobs JobLister,
	entities EntityReader,
	analytics AnalyticsReader,
	db, redis Pinger,
	metricsHandler http.Handler,
	cfg *config.Config,
	log logger.Logger,
) *Router {
	return &Router{
		sweeper:        sweeper,
		processor:      processor,
		jobs:           jobs,
		entities:       entities,
		analytics:      analytics,
		db:             db,
		redis:          redis,
		metricsHandler: metricsHandler,
		cfg:            cfg,
		logger:         log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	// Public endpoints.
	router.GET("/health", r.health)
	if r.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(r.metricsHandler))
	}

	// Privileged endpoints, gated on the shared secret.
	v1 := router.Group("/api/v1")
	v1.Use(sharedSecretAuth(r.cfg.Auth.SharedSecret))
	v1.POST("/sweep", r.triggerSweep)
	v1.POST("/jobs/process", r.processJob)
	v1.GET("/jobs/status", r.jobStatus)
	v1.GET("/entities/top", r.topEntities)
	v1.GET("/prompts/:id/analytics", r.promptAnalytics)

	return router
}

// health reports service and backend status. Degraded, not failing, when a
// backend is unreachable.
func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	dbConnected := r.db != nil && r.db.Ping(ctx) == nil
	redisConnected := r.redis != nil && r.redis.Ping(ctx) == nil
	if !dbConnected || !redisConnected {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"service":  serviceName,
		"version":  serviceVersion,
		"database": gin.H{"connected": dbConnected},
		"redis":    gin.H{"connected": redisConnected},
	})
}
