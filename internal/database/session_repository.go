package database

import (
	"context"
	"fmt"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepo archives ended sessions. Implements domain.SessionArchive.
type SessionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SessionArchive = (*SessionRepo)(nil)

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// ArchiveSession upserts the session record. A continuation re-archives the
// same session ID with its final end timestamp.
func (r *SessionRepo) ArchiveSession(ctx context.Context, rec domain.SessionRecord) error {
	var continuationOf *uuid.UUID
	if rec.ContinuationOf != uuid.Nil {
		continuationOf = &rec.ContinuationOf
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, account_id, room_id, started_at, ended_at, manually_stopped, continuation_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			manually_stopped = EXCLUDED.manually_stopped`,
		rec.SessionID, rec.AccountID, rec.RoomID, rec.StartedAt, rec.EndedAt,
		rec.ManuallyStopped, continuationOf,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}
