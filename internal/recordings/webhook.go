package recordings

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/models"
	"github.com/meeting-copilot/server/pkg/queue"
)

// WebhookPayload is the event envelope delivered by the video platform.
// The data shape varies per event; only the fields the reconciler cares
// about are modeled, everything else is ignored.
type WebhookPayload struct {
	Event            string      `json:"event"`
	CaptureSessionID string      `json:"capture_session_id"`
	Data             WebhookData `json:"data"`
	// Transcript fragments sometimes carry these at the top level.
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Source  string `json:"source"`
}

// WebhookData is the event-specific payload.
type WebhookData struct {
	ExportedVideoID string `json:"exported_video_id"`
	StreamURL       string `json:"stream_url"`
	PlayerURL       string `json:"player_url"`
	RTStreams       []struct {
		Name string `json:"name"`
	} `json:"rtstreams"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Source  string `json:"source"`
}

// ExportLedger is the subset of the recording store the reconciler needs.
type ExportLedger interface {
	MarkExported(ctx context.Context, sessionID, videoID, streamURL, playerURL string) (*models.Recording, bool, error)
}

// CredentialSource recovers the platform API key to use for background
// indexing of a recording: the creating user when known, otherwise the most
// recently registered user.
type CredentialSource interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetLatest(ctx context.Context) (*models.User, error)
}

// InsightScheduler enqueues insight generation work.
type InsightScheduler interface {
	EnqueueInsights(ctx context.Context, payload queue.InsightsPayload) error
}

// TranscriptRelay forwards live transcript fragments to connected clients.
type TranscriptRelay interface {
	Broadcast(sessionID, event string, payload any)
}

// WebhookHandler reconciles asynchronous platform events into the ledger.
// Delivery is at-least-once and unordered, so every branch must be safe to
// replay and must not assume the start/stop calls were ever observed.
type WebhookHandler struct {
	ledger    ExportLedger
	users     CredentialSource
	scheduler InsightScheduler
	relay     TranscriptRelay // optional
	logger    *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(ledger ExportLedger, users CredentialSource, scheduler InsightScheduler, relay TranscriptRelay, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{ledger: ledger, users: users, scheduler: scheduler, relay: relay, logger: logger}
}

// Handle handles POST /webhook. Every parseable event is acknowledged with
// 200 regardless of internal outcome, so the platform's delivery system
// never enters a retry storm; only a body that cannot be parsed at all is
// rejected.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var body WebhookPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid webhook body"})
		return
	}

	switch {
	case body.Event == "capture_session.exported":
		h.handleExported(c.Request.Context(), &body)
	case body.Event == "capture_session.active":
		names := make([]string, 0, len(body.Data.RTStreams))
		for _, s := range body.Data.RTStreams {
			names = append(names, s.Name)
		}
		h.logger.Info("capture session active",
			zap.String("session_id", body.CaptureSessionID),
			zap.Strings("rtstreams", names))
	case body.Event == "transcript" || body.Event == "transcript.segment" || body.Event == "rtstream.transcript":
		h.handleTranscript(&body)
	case strings.HasPrefix(body.Event, "capture_session."):
		h.logger.Info("capture session event", zap.String("event", body.Event), zap.String("session_id", body.CaptureSessionID))
	default:
		h.logger.Debug("unrecognized webhook event", zap.String("event", body.Event))
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "received": true})
}

func (h *WebhookHandler) handleExported(ctx context.Context, body *WebhookPayload) {
	videoID := body.Data.ExportedVideoID
	sessionID := body.CaptureSessionID
	if videoID == "" {
		// Malformed export event; acknowledged but never applied.
		h.logger.Warn("exported event without video id", zap.String("session_id", sessionID))
		return
	}

	rec, schedule, err := h.ledger.MarkExported(ctx, sessionID, videoID, body.Data.StreamURL, body.Data.PlayerURL)
	if err != nil {
		h.logger.Error("reconcile exported event failed", zap.Error(err), zap.String("session_id", sessionID))
		return
	}
	h.logger.Info("recording available",
		zap.Int64("recording_id", rec.ID),
		zap.String("session_id", sessionID),
		zap.String("video_id", videoID))

	if !schedule {
		return
	}
	apiKey := h.resolveAPIKey(ctx, rec)
	if apiKey == "" {
		h.logger.Warn("no credential available for indexing", zap.Int64("recording_id", rec.ID))
		return
	}
	err = h.scheduler.EnqueueInsights(ctx, queue.InsightsPayload{
		RecordingID: rec.ID,
		VideoID:     videoID,
		APIKey:      apiKey,
	})
	if err != nil {
		h.logger.Error("enqueue insights failed", zap.Error(err), zap.Int64("recording_id", rec.ID))
		return
	}
	h.logger.Info("insights scheduled", zap.Int64("recording_id", rec.ID), zap.String("video_id", videoID))
}

// resolveAPIKey prefers the credential of the user who started the session.
// Recordings first seen via webhook have no creating user; fall back to the
// most recently registered one.
func (h *WebhookHandler) resolveAPIKey(ctx context.Context, rec *models.Recording) string {
	if rec.UserID != 0 {
		user, err := h.users.GetByID(ctx, rec.UserID)
		if err == nil && user != nil && user.APIKey != "" {
			return user.APIKey
		}
		if err != nil {
			h.logger.Warn("lookup recording user failed", zap.Error(err), zap.Int64("user_id", rec.UserID))
		}
	}
	user, err := h.users.GetLatest(ctx)
	if err != nil || user == nil {
		return ""
	}
	return user.APIKey
}

func (h *WebhookHandler) handleTranscript(body *WebhookPayload) {
	text := body.Text
	if text == "" {
		text = body.Data.Text
	}
	source := body.Source
	if source == "" {
		source = body.Data.Source
	}
	if source == "" {
		source = "unknown"
	}
	snippet := text
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	h.logger.Debug("transcript fragment",
		zap.String("session_id", body.CaptureSessionID),
		zap.String("source", source),
		zap.Bool("is_final", body.IsFinal || body.Data.IsFinal),
		zap.String("text", snippet))

	if h.relay != nil && body.CaptureSessionID != "" {
		h.relay.Broadcast(body.CaptureSessionID, "transcript", gin.H{
			"text":     text,
			"is_final": body.IsFinal || body.Data.IsFinal,
			"source":   source,
		})
	}
}
