// Package sessions proxies capture session and token creation to the remote
// video platform on behalf of authenticated desktop clients.
package sessions

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/config"
	"github.com/meeting-copilot/server/internal/middleware"
	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/internal/videodb"
	"github.com/meeting-copilot/server/pkg/response"
)

// Gateway is the platform capability the session endpoints need.
type Gateway interface {
	CreateCaptureSession(ctx context.Context, apiKey string, req videodb.CreateCaptureSessionRequest) (map[string]any, error)
	CreateSessionToken(ctx context.Context, apiKey, endUserID string) (*videodb.SessionToken, error)
}

// Handler handles session proxy endpoints.
type Handler struct {
	gateway Gateway
	cfg     *config.Config
	logger  *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(gateway Gateway, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gateway: gateway, cfg: cfg, logger: logger}
}

// Config handles GET /config. Returns the server's dynamic configuration the
// desktop client needs at startup.
func (h *Handler) Config(c *gin.Context) {
	out := gin.H{
		"webhook_url": h.cfg.Webhook.URL,
		"api_port":    h.cfg.Server.Port,
	}
	if h.cfg.VideoDB.BaseURL != "" {
		out["backend_base_url"] = h.cfg.VideoDB.BaseURL
	}
	response.OK(c, out)
}

// TokenRequest is the optional body for POST /token.
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// CreateToken handles POST /token. Creates a platform session token for the
// caller using their stored API key.
func (h *Handler) CreateToken(c *gin.Context) {
	user := c.MustGet(middleware.ContextUser).(*models.User)

	var req TokenRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	endUserID := req.UserID
	if endUserID == "" {
		endUserID = fmt.Sprintf("user-%d", user.ID)
	}

	token, err := h.gateway.CreateSessionToken(c.Request.Context(), user.APIKey, endUserID)
	if err != nil {
		h.logger.Error("create session token failed", zap.Error(err), zap.Int64("user_id", user.ID))
		response.Internal(c, "failed to generate session token")
		return
	}
	response.OK(c, token)
}

// CaptureSessionRequest is the optional body for POST /capture-session.
type CaptureSessionRequest struct {
	CallbackURL    string         `json:"callback_url"`
	Metadata       map[string]any `json:"metadata"`
	WSConnectionID string         `json:"ws_connection_id"`
}

// CreateCaptureSession handles POST /capture-session. Must be called before
// the desktop client starts capturing; the returned session_id is the
// correlation key for the whole recording lifecycle.
func (h *Handler) CreateCaptureSession(c *gin.Context) {
	user := c.MustGet(middleware.ContextUser).(*models.User)

	var req CaptureSessionRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = h.cfg.Webhook.URL
	}

	h.logger.Info("creating capture session",
		zap.Int64("user_id", user.ID),
		zap.String("callback_url", callbackURL),
		zap.String("ws_connection_id", req.WSConnectionID))

	session, err := h.gateway.CreateCaptureSession(c.Request.Context(), user.APIKey, videodb.CreateCaptureSessionRequest{
		EndUserID:      fmt.Sprintf("user-%d", user.ID),
		CallbackURL:    callbackURL,
		Metadata:       req.Metadata,
		WSConnectionID: req.WSConnectionID,
	})
	if err != nil {
		h.logger.Error("create capture session failed", zap.Error(err), zap.Int64("user_id", user.ID))
		response.Internal(c, "failed to create capture session")
		return
	}
	response.OK(c, session)
}
