// Package transcription bridges the gap between "capture session exists" and
// "its rtstreams exist": the platform creates the streams asynchronously and
// offers no push notification, so activation polls with a bounded retry loop.
package transcription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/videodb"
)

// StreamAPI is the platform capability the poller needs.
type StreamAPI interface {
	GetCaptureSession(ctx context.Context, apiKey, sessionID string) (*videodb.CaptureSession, error)
	ListRTStreams(ctx context.Context, apiKey, sessionID string, channel videodb.ChannelType) ([]videodb.RTStream, error)
	StartTranscript(ctx context.Context, apiKey, streamID, wsConnectionID string) error
}

// Poller waits for a capture session's rtstreams to materialize, then starts
// transcription on them. Each Activate call runs detached from the request
// that triggered it and shares no state with other polls.
type Poller struct {
	api         StreamAPI
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewPoller creates a poller with the given bounds.
func NewPoller(api StreamAPI, maxAttempts int, retryDelay time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 150
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Poller{api: api, maxAttempts: maxAttempts, retryDelay: retryDelay, logger: logger}
}

// Activate polls until at least one rtstream exists for the session, then
// starts transcription on each found channel that has a connection id
// supplied. Exhaustion is logged and abandoned: this is best-effort
// background activation with no caller-visible failure channel.
func (p *Poller) Activate(ctx context.Context, sessionID, apiKey, micConnID, sysAudioConnID string) {
	log := p.logger.With(zap.String("session_id", sessionID))
	log.Info("starting transcription activation",
		zap.String("mic_conn_id", micConnID),
		zap.String("sys_audio_conn_id", sysAudioConnID))

	var mics, systemAudios []videodb.RTStream
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		session, err := p.api.GetCaptureSession(ctx, apiKey, sessionID)
		if err != nil {
			log.Warn("poll attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			p.wait(ctx)
			continue
		}
		if session == nil {
			log.Debug("capture session not found yet", zap.Int("attempt", attempt))
			p.wait(ctx)
			continue
		}

		mics, err = p.api.ListRTStreams(ctx, apiKey, sessionID, videodb.ChannelMic)
		if err != nil {
			log.Warn("list mic rtstreams failed", zap.Int("attempt", attempt), zap.Error(err))
			p.wait(ctx)
			continue
		}
		systemAudios, err = p.api.ListRTStreams(ctx, apiKey, sessionID, videodb.ChannelSystemAudio)
		if err != nil {
			log.Warn("list system audio rtstreams failed", zap.Int("attempt", attempt), zap.Error(err))
			p.wait(ctx)
			continue
		}

		if len(mics) > 0 || len(systemAudios) > 0 {
			log.Info("rtstreams found",
				zap.Int("mic", len(mics)),
				zap.Int("system_audio", len(systemAudios)),
				zap.Int("attempt", attempt))
			break
		}
		log.Debug("no rtstreams yet", zap.Int("attempt", attempt))
		p.wait(ctx)
	}

	if len(mics) == 0 && len(systemAudios) == 0 {
		log.Error("no rtstreams after max attempts", zap.Int("max_attempts", p.maxAttempts))
		return
	}

	p.startChannel(ctx, log, apiKey, "mic", mics, micConnID)
	p.startChannel(ctx, log, apiKey, "system_audio", systemAudios, sysAudioConnID)
}

// startChannel starts transcription on the first stream of a channel when a
// connection id was supplied. A found stream without a connection id is
// skipped, not an error.
func (p *Poller) startChannel(ctx context.Context, log *zap.Logger, apiKey, channel string, streams []videodb.RTStream, connID string) {
	if len(streams) == 0 {
		return
	}
	if connID == "" {
		log.Info("stream found but no connection id supplied, skipping", zap.String("channel", channel))
		return
	}
	stream := streams[0]
	if err := p.api.StartTranscript(ctx, apiKey, stream.ID, connID); err != nil {
		log.Error("start transcript failed", zap.String("channel", channel), zap.String("stream_id", stream.ID), zap.Error(err))
		return
	}
	log.Info("transcription started", zap.String("channel", channel), zap.String("stream_id", stream.ID))
}

func (p *Poller) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.retryDelay):
	}
}
