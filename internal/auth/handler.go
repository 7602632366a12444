package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/pkg/response"
)

// RegisterRequest is the body for POST /auth/register. The api_key is the
// caller's credential for the remote video platform; the server issues an
// opaque access token in exchange.
type RegisterRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key" binding:"required"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Register handles POST /auth/register. Registering again with a fresh API
// key creates a new user; background credential lookups prefer the newest.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	token := uuid.New().String()
	user, err := h.repo.Create(c.Request.Context(), req.Name, req.APIKey, token)
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID))
	response.Created(c, gin.H{"user_id": user.ID, "access_token": user.AccessToken})
}
