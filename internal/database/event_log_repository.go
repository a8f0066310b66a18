package database

import (
	"context"
	"fmt"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLogRepo appends batched event records. Implements domain.EventLog.
type EventLogRepo struct {
	pool *pgxpool.Pool
}

var _ domain.EventLog = (*EventLogRepo)(nil)

func NewEventLogRepo(pool *pgxpool.Pool) *EventLogRepo {
	return &EventLogRepo{pool: pool}
}

// AppendBatch writes all records in one round trip via COPY.
func (r *EventLogRepo) AppendBatch(ctx context.Context, records []domain.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		payload := rec.Payload
		if payload == nil {
			payload = []byte("{}")
		}
		rows[i] = []any{rec.SessionID, rec.Kind, rec.UserID, payload, rec.Timestamp}
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"event_log"},
		[]string{"session_id", "kind", "user_id", "payload", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to append event batch: %w", err)
	}
	return nil
}
