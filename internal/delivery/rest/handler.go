// Package rest exposes the progress service over HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres/repository"
	"github.com/aliskhannn/academy-tube/internal/service"
)

type ProgressService interface {
	GetAssignment(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error)
	SaveProgress(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error
	RecordFirstWatch(ctx context.Context, studentID string, id uuid.UUID) (time.Time, bool, error)
	RecordSegments(ctx context.Context, studentID string, id uuid.UUID, segments []entities.WatchSegment) error
}

type Handler struct {
	progressService ProgressService
	logger          *zap.Logger
}

func NewHandler(progressService ProgressService, logger *zap.Logger) *Handler {
	return &Handler{
		progressService: progressService,
		logger:          logger,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router(secret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", Auth(secret))
	v1.GET("/assignments/:id", h.getAssignment)
	v1.PATCH("/assignments/:id/progress", h.saveProgress)
	v1.POST("/assignments/:id/segments", h.recordSegments)
	v1.POST("/watch-starts", h.recordWatchStart)

	return r
}

type saveProgressRequest struct {
	ProgressPercent *float64  `json:"progress_percent" binding:"required,gte=0,lte=100"`
	IsCompleted     bool      `json:"is_completed"`
	LastPosition    float64   `json:"last_position" binding:"gte=0"`
	LastWatchedAt   time.Time `json:"last_watched_at"`
}

type watchStartRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required,uuid"`
}

type watchStartResponse struct {
	StartedAt time.Time `json:"started_at"`
	First     bool      `json:"first"`
}

type segmentsRequest struct {
	Segments []entities.WatchSegment `json:"segments" binding:"required"`
}

func (h *Handler) getAssignment(c *gin.Context) {
	id, ok := assignmentID(c)
	if !ok {
		return
	}

	a, err := h.progressService.GetAssignment(c.Request.Context(), studentID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

func (h *Handler) saveProgress(c *gin.Context) {
	id, ok := assignmentID(c)
	if !ok {
		return
	}

	var req saveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := entities.ProgressUpdate{
		ProgressPercent: *req.ProgressPercent,
		IsCompleted:     req.IsCompleted,
		LastPosition:    req.LastPosition,
		LastWatchedAt:   req.LastWatchedAt,
	}
	if err := h.progressService.SaveProgress(c.Request.Context(), studentID(c), id, update); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) recordWatchStart(c *gin.Context) {
	var req watchStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(req.AssignmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment_id"})
		return
	}

	startedAt, first, err := h.progressService.RecordFirstWatch(c.Request.Context(), studentID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, watchStartResponse{StartedAt: startedAt, First: first})
}

func (h *Handler) recordSegments(c *gin.Context) {
	id, ok := assignmentID(c)
	if !ok {
		return
	}

	var req segmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.progressService.RecordSegments(c.Request.Context(), studentID(c), id, req.Segments); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func assignmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors onto status codes. Unknown errors are logged
// and hidden from the caller.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrProgressOutOfRange), errors.Is(err, service.ErrInvalidSegments):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
