package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meeting-copilot/server/internal/insights"
	"github.com/meeting-copilot/server/pkg/queue"
)

// InsightProcessor consumes insight jobs from the queue and runs the pipeline.
type InsightProcessor struct {
	pipeline *insights.Pipeline
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewInsightProcessor creates an insight job processor.
func NewInsightProcessor(pipeline *insights.Pipeline, q *queue.Queue, logger *zap.Logger) *InsightProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightProcessor{pipeline: pipeline, queue: q, logger: logger}
}

// Process executes one insight job.
func (p *InsightProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeInsights {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.InsightsPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return p.pipeline.Process(ctx, payload.RecordingID, payload.VideoID, payload.APIKey)
}

// Run starts the worker loop: dequeue, process, retry on error. Failures are
// isolated here; nothing propagates to any caller.
func (p *InsightProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("insight worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
