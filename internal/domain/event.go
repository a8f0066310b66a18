package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the upstream social event type.
type EventKind string

const (
	EventGift        EventKind = "gift"
	EventComment     EventKind = "comment"
	EventLike        EventKind = "like"
	EventFollow      EventKind = "follow"
	EventShare       EventKind = "share"
	EventViewerCount EventKind = "viewer_count"
)

// GiftPayload carries the gift-specific fields of a canonical event.
// RepeatCount is the running streak counter as reported by the platform;
// RepeatEnd marks the terminal event of a streak. Non-streakable gifts are
// final on arrival.
type GiftPayload struct {
	GiftID      string
	Name        string
	UnitValue   int64
	RepeatCount int64
	Streakable  bool
	RepeatEnd   bool
}

// CanonicalEvent is the normalized, source-agnostic representation of an
// upstream social event. Immutable once created. Sequence is strictly
// increasing per event kind within one ingestion stream.
type CanonicalEvent struct {
	Kind        EventKind
	UserID      string
	DisplayName string
	RoomID      string
	SessionID   uuid.UUID
	Timestamp   time.Time
	Sequence    uint64

	// Payloads; exactly one is populated depending on Kind.
	Gift        *GiftPayload
	Comment     string
	LikeCount   int64
	ViewerCount int64
}

// AggregatedGift is the single event emitted per completed gift streak.
type AggregatedGift struct {
	UserID      string
	DisplayName string
	RoomID      string
	SessionID   uuid.UUID
	GiftID      string
	GiftName    string
	UnitValue   int64
	TotalCount  int64
	TotalValue  int64
	Timestamp   time.Time
}

// EventRef points a resolved command back at the event that produced it.
type EventRef struct {
	Kind     EventKind
	UserID   string
	Sequence uint64
}
