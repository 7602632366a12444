package recordings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meeting-copilot/server/internal/models"
)

// ErrNotFound is returned when no recording exists for the given key.
var ErrNotFound = errors.New("recording not found")

const recordingColumns = `id, session_id, COALESCE(user_id, 0), COALESCE(video_id,''), COALESCE(stream_url,''), COALESCE(player_url,''),
	duration, status, COALESCE(insights,''), insights_status, created_at, updated_at`

// Repository handles recording persistence. All state transitions live here
// so they are applied in single statements together with the fields they
// accompany.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.VideoID, &rec.StreamURL, &rec.PlayerURL,
		&rec.Duration, &rec.Status, &rec.Insights, &rec.InsightsStatus, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Start creates the recording row for a session, or returns the existing one
// unchanged. Exactly one row ever exists per session_id.
func (r *Repository) Start(ctx context.Context, sessionID string, userID int64) (*models.Recording, error) {
	const q = `INSERT INTO recordings (session_id, user_id, status, insights_status)
		VALUES ($1, NULLIF($2, 0), 'recording', 'pending')
		ON CONFLICT (session_id) DO NOTHING
		RETURNING ` + recordingColumns
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, sessionID, userID))
	if err == nil {
		return rec, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	// Conflict: the row already exists, return it as-is.
	return r.GetBySessionID(ctx, sessionID)
}

// Stop advances a recording to processing. The status only moves forward: a
// recording that the webhook already made available is returned unchanged.
func (r *Repository) Stop(ctx context.Context, sessionID string) (*models.Recording, error) {
	const q = `UPDATE recordings SET status = 'processing', updated_at = NOW()
		WHERE session_id = $1 AND status = 'recording'
		RETURNING ` + recordingColumns
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, sessionID))
	if err == nil {
		return rec, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return r.GetBySessionID(ctx, sessionID)
}

// MarkExported reconciles the exported webhook into the ledger in one upsert:
// the row is created in the available state when the start call was never
// observed, or advanced to available with the newly learned fields otherwise.
// insights_status moves to pending only when no insight attempt is already in
// flight or finished, so duplicate deliveries never regress it. The returned
// bool reports whether an insight run should be scheduled.
func (r *Repository) MarkExported(ctx context.Context, sessionID, videoID, streamURL, playerURL string) (*models.Recording, bool, error) {
	const q = `INSERT INTO recordings (session_id, video_id, stream_url, player_url, status, insights_status)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), 'available', 'pending')
		ON CONFLICT (session_id) DO UPDATE SET
			video_id = EXCLUDED.video_id,
			stream_url = COALESCE(EXCLUDED.stream_url, recordings.stream_url),
			player_url = COALESCE(EXCLUDED.player_url, recordings.player_url),
			status = 'available',
			insights_status = CASE
				WHEN recordings.insights_status IN ('processing', 'ready', 'failed') THEN recordings.insights_status
				ELSE 'pending'
			END,
			updated_at = NOW()
		RETURNING ` + recordingColumns
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, sessionID, videoID, streamURL, playerURL))
	if err != nil {
		return nil, false, err
	}
	return rec, rec.InsightsStatus == models.InsightsStatusPending, nil
}

// GetBySessionID returns a recording by its session correlation key.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE session_id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, sessionID))
}

// GetByID returns a recording by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, id))
}

// List returns all recordings, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.VideoID, &rec.StreamURL, &rec.PlayerURL,
			&rec.Duration, &rec.Status, &rec.Insights, &rec.InsightsStatus, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// SetInsightsStatus sets the insight pipeline state for a recording.
func (r *Repository) SetInsightsStatus(ctx context.Context, id int64, status string) error {
	const q = `UPDATE recordings SET insights_status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// SaveInsights stores the generated insight content and marks the pipeline ready.
func (r *Repository) SaveInsights(ctx context.Context, id int64, insights string) error {
	const q = `UPDATE recordings SET insights = $1, insights_status = 'ready', updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, insights, id)
	return err
}
