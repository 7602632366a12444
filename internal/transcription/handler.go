package transcription

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/middleware"
	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/pkg/response"
)

// Activator dispatches transcription activation for a capture session.
type Activator interface {
	Activate(ctx context.Context, sessionID, apiKey, micConnID, sysAudioConnID string)
}

// Handler handles the start-transcription endpoint.
type Handler struct {
	activator Activator
	logger    *zap.Logger
}

// NewHandler creates a transcription handler.
func NewHandler(activator Activator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{activator: activator, logger: logger}
}

// StartRequest is the body for POST /start-transcription. The connection ids
// are client-created websocket transports on the platform; at least one is
// required.
type StartRequest struct {
	SessionID            string `json:"session_id"`
	MicConnectionID      string `json:"mic_ws_connection_id"`
	SysAudioConnectionID string `json:"sys_audio_ws_connection_id"`
}

// Start handles POST /start-transcription. Dispatches the activation poll in
// the background and returns immediately.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}
	if req.MicConnectionID == "" && req.SysAudioConnectionID == "" {
		response.BadRequest(c, "at least one ws_connection_id is required")
		return
	}
	user := c.MustGet(middleware.ContextUser).(*models.User)

	h.logger.Info("dispatching transcription activation",
		zap.String("session_id", req.SessionID),
		zap.Int64("user_id", user.ID))

	// Detached from this request; the poller sleeps between attempts.
	go h.activator.Activate(context.Background(), req.SessionID, user.APIKey, req.MicConnectionID, req.SysAudioConnectionID)

	response.OK(c, gin.H{
		"status":     "started",
		"session_id": req.SessionID,
		"message":    "transcription startup initiated; will start once rtstreams exist",
	})
}
