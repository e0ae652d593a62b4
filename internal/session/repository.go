package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the optional Postgres session index. It mirrors status
// documents into a queryable table so dashboards can list sessions
// without scanning the filesystem; the filesystem stays the source of
// truth.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session index repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SessionSummary is one row of the index.
type SessionSummary struct {
	SessionID        string    `json:"session_id"`
	Status           Status    `json:"status"`
	Progress         int       `json:"progress"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	Error            string    `json:"error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Upsert writes or refreshes one session row.
func (r *Repository) Upsert(ctx context.Context, sess *Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session document: %w", err)
	}

	query := `
		INSERT INTO forecasting.training_sessions
			(session_id, status, progress, original_filename, error, document, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (session_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			original_filename = EXCLUDED.original_filename,
			error = EXCLUDED.error,
			document = EXCLUDED.document,
			updated_at = now()`

	_, err = r.pool.Exec(ctx, query,
		sess.SessionID, string(sess.Status), sess.Progress,
		sess.OriginalFilename, sess.Error, doc,
	)
	return err
}

// ListRecent returns the most recently updated sessions.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `
		SELECT session_id, status, progress, original_filename, error, updated_at
		FROM forecasting.training_sessions
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]SessionSummary, 0, limit)
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Status, &s.Progress,
			&s.OriginalFilename, &s.Error, &s.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// Delete removes one session row. Used by the cleanup sweep when the
// matching directory is deleted.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM forecasting.training_sessions WHERE session_id = $1`, sessionID)
	return err
}
