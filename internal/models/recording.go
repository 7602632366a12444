package models

import (
	"time"
)

// Recording status lifecycle: recording -> processing -> available. Never regresses.
const (
	RecordingStatusRecording  = "recording"
	RecordingStatusProcessing = "processing"
	RecordingStatusAvailable  = "available"
)

// Insight generation lifecycle: pending -> processing -> ready | failed.
// Starts only once the recording itself is available.
const (
	InsightsStatusPending    = "pending"
	InsightsStatusProcessing = "processing"
	InsightsStatusReady      = "ready"
	InsightsStatusFailed     = "failed"
)

// Recording is one recorded meeting session (capture session on the remote
// platform). session_id is the correlation key used to match webhook events;
// video_id and the playback URLs arrive later via the exported webhook.
type Recording struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	UserID         int64     `json:"user_id,omitempty"` // creating caller; 0 when first seen via webhook
	VideoID        string    `json:"video_id,omitempty"`
	StreamURL      string    `json:"stream_url,omitempty"`
	PlayerURL      string    `json:"player_url,omitempty"`
	Duration       int       `json:"duration"`
	Status         string    `json:"status"`
	Insights       string    `json:"-"` // JSON array of markdown strings, set when insights are ready
	InsightsStatus string    `json:"insights_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
