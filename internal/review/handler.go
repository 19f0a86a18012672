package review

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/pipeline"
	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/server/respond"
)

// Starter begins processing a session. *pipeline.Orchestrator implements it.
type Starter interface {
	Start(ctx context.Context, sessionID string) (sessions.Session, error)
}

// Handler serves the trigger and polling endpoints.
type Handler struct {
	Pipeline Starter
	Status   *sessions.StatusService
}

// NewHandler constructs a Handler.
func NewHandler(p Starter, status *sessions.StatusService) *Handler {
	return &Handler{Pipeline: p, Status: status}
}

// RegisterRoutes attaches the trigger and polling routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
	rg.GET("/status", h.status)
}

type processRequest struct {
	UploadID string `json:"uploadId"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.UploadID = strings.TrimSpace(req.UploadID)
	if req.UploadID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Upload ID is required", nil)
		return
	}

	c.Set(middleware.SessionIDKey, req.UploadID)
	ctx := pipeline.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	sess, err := h.Pipeline.Start(ctx, req.UploadID)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Upload ID is required", nil)
		case errors.Is(err, sessions.ErrNotVerified):
			respond.Error(c, http.StatusBadRequest, "not_verified", "Phone number not verified", nil)
		case errors.Is(err, sessions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Upload session not found", nil)
		case errors.Is(err, sessions.ErrConflict):
			respond.Error(c, http.StatusConflict, "conflict", "Analysis already started or completed", nil)
		case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrDispatcherClosed):
			c.Header("Retry-After", "5")
			respond.Error(c, http.StatusServiceUnavailable, "busy", "Too many analyses in progress, try again shortly", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to start processing", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"success":    true,
		"message":    "Processing started",
		"analysisId": sess.ID,
	})
}

func (h *Handler) status(c *gin.Context) {
	id := c.Query("id")
	c.Set(middleware.SessionIDKey, id)
	proj, err := h.Status.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Analysis ID is required", nil)
		case errors.Is(err, sessions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to get analysis status", nil)
		}
		return
	}
	respond.Data(c, proj)
}
