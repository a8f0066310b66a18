package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// ContinuityStore persists suspended sessions keyed by room so a reconnect
// can resume them. Implements domain.SessionStore. The key TTL is the
// continuation timeout, so expiry is Redis's job, not the caller's.
type ContinuityStore struct {
	rdb *goredis.Client
}

var _ domain.SessionStore = (*ContinuityStore)(nil)

func NewContinuityStore(rdb *goredis.Client) *ContinuityStore {
	return &ContinuityStore{rdb: rdb}
}

func (s *ContinuityStore) SaveSuspended(ctx context.Context, rec domain.SessionRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := s.rdb.Set(ctx, continuityKey(rec.AccountID, rec.RoomID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save continuity entry: %w", err)
	}
	return nil
}

func (s *ContinuityStore) LookupByRoom(ctx context.Context, accountID, roomID string) (*domain.SessionRecord, error) {
	payload, err := s.rdb.Get(ctx, continuityKey(accountID, roomID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up continuity entry: %w", err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode continuity entry: %w", err)
	}
	return &rec, nil
}

func (s *ContinuityStore) Delete(ctx context.Context, accountID, roomID string) error {
	return s.rdb.Del(ctx, continuityKey(accountID, roomID)).Err()
}

func continuityKey(accountID, roomID string) string {
	return fmt.Sprintf("continuity:%s:%s", accountID, roomID)
}
