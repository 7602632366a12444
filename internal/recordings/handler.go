package recordings

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/middleware"
	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/pkg/response"
)

// Ledger is the recording store as seen by the HTTP handlers.
type Ledger interface {
	Start(ctx context.Context, sessionID string, userID int64) (*models.Recording, error)
	Stop(ctx context.Context, sessionID string) (*models.Recording, error)
	GetByID(ctx context.Context, id int64) (*models.Recording, error)
	List(ctx context.Context) ([]models.Recording, error)
}

// Handler handles recording lifecycle and read endpoints.
type Handler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(ledger Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// StartRequest is the body for POST /recordings/start.
type StartRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// Start handles POST /recordings/start. Idempotent: calling it again for the
// same session returns the existing row unchanged.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id is required")
		return
	}
	user := c.MustGet(middleware.ContextUser).(*models.User)

	rec, err := h.ledger.Start(c.Request.Context(), req.SessionID, user.ID)
	if err != nil {
		h.logger.Error("start recording failed", zap.Error(err), zap.String("session_id", req.SessionID))
		response.Internal(c, "failed to start recording")
		return
	}
	h.logger.Info("recording started", zap.String("session_id", rec.SessionID), zap.Int64("recording_id", rec.ID))
	response.OK(c, gin.H{"id": rec.ID, "session_id": rec.SessionID, "status": rec.Status})
}

// Stop handles POST /recordings/:id/stop, where :id is the session
// correlation key.
func (h *Handler) Stop(c *gin.Context) {
	sessionID := c.Param("id")

	rec, err := h.ledger.Stop(c.Request.Context(), sessionID)
	if err != nil {
		if err == ErrNotFound {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("stop recording failed", zap.Error(err), zap.String("session_id", sessionID))
		response.Internal(c, "failed to stop recording")
		return
	}
	h.logger.Info("recording stopped", zap.String("session_id", sessionID), zap.String("status", rec.Status))
	response.OK(c, gin.H{"id": rec.ID, "session_id": rec.SessionID, "status": rec.Status})
}

// List handles GET /recordings. Returns all recordings with their insight state.
func (h *Handler) List(c *gin.Context) {
	list, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, recordingView(&list[i]))
	}
	response.OK(c, out)
}

// GetByID handles GET /recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.ledger.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == ErrNotFound {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("get recording failed", zap.Error(err), zap.Int64("recording_id", id))
		response.Internal(c, "failed to fetch recording")
		return
	}
	response.OK(c, recordingView(rec))
}

// recordingView shapes a ledger row for API responses, parsing the stored
// insight JSON so clients receive it structured rather than double-encoded.
func recordingView(rec *models.Recording) gin.H {
	var insights json.RawMessage
	if rec.Insights != "" && json.Valid([]byte(rec.Insights)) {
		insights = json.RawMessage(rec.Insights)
	}
	return gin.H{
		"id":              rec.ID,
		"session_id":      rec.SessionID,
		"video_id":        rec.VideoID,
		"stream_url":      rec.StreamURL,
		"player_url":      rec.PlayerURL,
		"duration":        rec.Duration,
		"status":          rec.Status,
		"insights":        insights,
		"insights_status": rec.InsightsStatus,
		"created_at":      rec.CreatedAt,
	}
}
