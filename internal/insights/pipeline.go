// Package insights turns a finished recording into searchable content and a
// structured meeting report. It runs detached from any request: failures end
// as ledger state, never as caller-visible errors.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/models"
)

// Ledger is the recording store as seen by the pipeline.
type Ledger interface {
	SetInsightsStatus(ctx context.Context, id int64, status string) error
	SaveInsights(ctx context.Context, id int64, insights string) error
}

// VideoAPI is the platform capability the pipeline needs.
type VideoAPI interface {
	IndexVideo(ctx context.Context, apiKey, videoID string) (bool, error)
	GetTranscriptText(ctx context.Context, apiKey, videoID string) (string, error)
	GenerateText(ctx context.Context, apiKey, prompt, modelName string) (string, error)
}

// Pipeline indexes a recording's video and derives a meeting report from its
// transcript.
type Pipeline struct {
	ledger Ledger
	api    VideoAPI
	model  string
	logger *zap.Logger
}

// NewPipeline creates an insight pipeline using the given model tier for
// report generation.
func NewPipeline(ledger Ledger, api VideoAPI, model string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "ultra"
	}
	return &Pipeline{ledger: ledger, api: api, model: model, logger: logger}
}

const promptTemplate = `Analyze the following meeting transcript and generate a comprehensive meeting report in markdown format.

**Output Structure:**
## 📋 Meeting Summary
A brief 2-3 sentence executive summary of the meeting.

## 🎯 Key Discussion Points
- Bullet points of the main topics discussed

## 💡 Key Decisions
- Any decisions that were made during the meeting
---

Transcript:
%s`

// Process runs the pipeline for one recording. Domain outcomes (indexing
// rejected, missing transcript, empty generation) terminate as ledger state
// and return nil; only infrastructure failures (ledger writes) return an
// error so the job queue can retry them.
func (p *Pipeline) Process(ctx context.Context, recordingID int64, videoID, apiKey string) error {
	log := p.logger.With(zap.Int64("recording_id", recordingID), zap.String("video_id", videoID))

	if err := p.ledger.SetInsightsStatus(ctx, recordingID, models.InsightsStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	log.Info("insight pipeline started")

	ok, err := p.api.IndexVideo(ctx, apiKey, videoID)
	if err != nil || !ok {
		if err != nil {
			log.Warn("index video failed", zap.Error(err))
		} else {
			log.Warn("platform rejected indexing")
		}
		if werr := p.ledger.SetInsightsStatus(ctx, recordingID, models.InsightsStatusFailed); werr != nil {
			return fmt.Errorf("mark failed: %w", werr)
		}
		return nil
	}
	log.Info("video indexed")

	transcript, err := p.api.GetTranscriptText(ctx, apiKey, videoID)
	if err != nil {
		log.Warn("fetch transcript failed", zap.Error(err))
		transcript = ""
	}
	if strings.TrimSpace(transcript) == "" {
		// Valid terminal case: indexed, but nothing was said.
		log.Info("no transcript, skipping insight generation")
		if werr := p.ledger.SetInsightsStatus(ctx, recordingID, models.InsightsStatusReady); werr != nil {
			return fmt.Errorf("mark ready: %w", werr)
		}
		return nil
	}

	report, err := p.api.GenerateText(ctx, apiKey, fmt.Sprintf(promptTemplate, transcript), p.model)
	if err != nil || strings.TrimSpace(report) == "" {
		// Generation is best-effort on top of successful indexing.
		if err != nil {
			log.Warn("generate insights failed", zap.Error(err))
		} else {
			log.Warn("empty response from text generation")
		}
		if werr := p.ledger.SetInsightsStatus(ctx, recordingID, models.InsightsStatusReady); werr != nil {
			return fmt.Errorf("mark ready: %w", werr)
		}
		return nil
	}

	// Stored as a JSON array of markdown strings, the wire format desktop
	// clients already render.
	encoded, err := json.Marshal([]string{strings.TrimSpace(report)})
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	if err := p.ledger.SaveInsights(ctx, recordingID, string(encoded)); err != nil {
		return fmt.Errorf("save insights: %w", err)
	}
	log.Info("insights ready")
	return nil
}
