package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a broadcast session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionActive    SessionState = "active"
	SessionSuspended SessionState = "suspended"
	SessionEnded     SessionState = "ended"
)

// SessionRecord describes one broadcast session. At most one record per
// account is Active at any time.
type SessionRecord struct {
	SessionID       uuid.UUID
	AccountID       string
	RoomID          string
	State           SessionState
	StartedAt       time.Time
	SuspendedAt     time.Time
	EndedAt         time.Time
	ManuallyStopped bool
	ContinuationOf  uuid.UUID
}

// SessionStore persists the room-to-session continuity mapping. Entries
// expire after the continuation timeout so a late reconnect starts fresh.
type SessionStore interface {
	// SaveSuspended records a suspended session under its room ID with the
	// continuation TTL.
	SaveSuspended(ctx context.Context, rec SessionRecord, ttl time.Duration) error
	// LookupByRoom returns the suspended session for a room, if any entry is
	// still within its continuation window.
	LookupByRoom(ctx context.Context, accountID, roomID string) (*SessionRecord, error)
	// Delete removes the continuity entry for a room.
	Delete(ctx context.Context, accountID, roomID string) error
}

// SessionArchive durably records session boundaries.
type SessionArchive interface {
	ArchiveSession(ctx context.Context, rec SessionRecord) error
}

// RoomIDSource supplies the room ID of the currently active session. The
// ingress normalizer tags every event with it.
type RoomIDSource interface {
	CurrentRoomID() string
	CurrentSessionID() uuid.UUID
}
