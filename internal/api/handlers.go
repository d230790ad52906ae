package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/mindshare/internal/database"
	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
)

const (
	defaultTopLimit = 20
	maxTopLimit     = 100
)

// triggerSweep handles POST /api/v1/sweep.
func (r *Router) triggerSweep(c *gin.Context) {
	result, err := r.sweeper.Sweep(c.Request.Context())
	if err != nil {
		r.logger.Error("sweep failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"batch_key":    result.BatchKey,
		"prompt_count": result.PromptCount,
		"jobs_created": result.JobsCreated,
	})
}

type processRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

// processJob handles POST /api/v1/jobs/process. Reprocessing a finished job
// is not an error: the stored outcome comes back unchanged.
func (r *Router) processJob(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	outcome, err := r.processor.Process(c.Request.Context(), req.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		r.logger.Error("job processing failed",
			logger.String("job_id", req.JobID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	response := gin.H{
		"success": outcome.Status == domain.JobStatusSucceeded || outcome.AlreadyProcessed,
		"job_id":  outcome.JobID,
		"status":  outcome.Status,
	}
	if outcome.EntityID != "" {
		response["entity_id"] = outcome.EntityID
	}
	if outcome.ErrorMessage != "" {
		response["error"] = outcome.ErrorMessage
	}
	c.JSON(http.StatusOK, response)
}

// jobStatus handles GET /api/v1/jobs/status with optional filters.
func (r *Router) jobStatus(c *gin.Context) {
	filter := database.JobFilter{
		JobID:       c.Query("job_id"),
		PromptRunID: c.Query("prompt_run_id"),
		PromptID:    c.Query("prompt_id"),
		BatchKey:    c.Query("batch_key"),
		Status:      c.Query("status"),
	}

	jobs, err := r.jobs.List(c.Request.Context(), filter)
	if err != nil {
		r.logger.Error("job status query failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status query failed"})
		return
	}

	var summary domain.JobStatusSummary
	for i := range jobs {
		summary.Add(jobs[i].Status)
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":    jobs,
		"summary": summary,
	})
}

// topEntities handles GET /api/v1/entities/top.
func (r *Router) topEntities(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTopLimit)))
	if err != nil || limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	entities, err := r.entities.TopEntities(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		r.logger.Error("top entities query failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entity query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entities": entities,
		"count":    len(entities),
	})
}

// promptAnalytics handles GET /api/v1/prompts/:id/analytics.
func (r *Router) promptAnalytics(c *gin.Context) {
	promptID := c.Param("id")

	stats, err := r.analytics.PromptAnalytics(c.Request.Context(), promptID)
	if err != nil {
		r.logger.Error("prompt analytics query failed",
			logger.String("prompt_id", promptID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analytics query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prompt_id": promptID,
		"results":   stats,
	})
}
