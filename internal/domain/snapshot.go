package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry is one ranked row of the per-session gifter leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalCoins  int64  `json:"total_coins"`
	GiftCount   int64  `json:"gift_count"`
}

// Counters are the rolling per-session totals.
type Counters struct {
	Gifts        int64   `json:"gifts"`
	GiftValue    int64   `json:"gift_value"`
	GiftValueUSD float64 `json:"gift_value_usd"`
	Comments     int64   `json:"comments"`
	Likes        int64   `json:"likes"`
	Follows      int64   `json:"follows"`
	Shares       int64   `json:"shares"`
	Viewers      int64   `json:"viewers"`
	PeakViewers  int64   `json:"peak_viewers"`
}

// FeedItem is one entry of the recent-events ring buffer.
type FeedItem struct {
	Kind        EventKind `json:"kind"`
	DisplayName string    `json:"display_name"`
	Summary     string    `json:"summary"`
	Timestamp   time.Time `json:"timestamp"`
}

// LiveSnapshot is the immutable view handed to readers. A new snapshot is
// published after every mutation; readers never observe partial state.
type LiveSnapshot struct {
	SessionID    uuid.UUID          `json:"session_id"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	Counters     Counters           `json:"counters"`
	RecentEvents []FeedItem         `json:"recent_events"`
	Device       DeviceStats        `json:"device"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// LogRecord is one row of the durable event log.
type LogRecord struct {
	SessionID uuid.UUID
	Kind      string
	UserID    string
	Payload   []byte
	Timestamp time.Time
}

// EventLog is the durable storage collaborator. The dispatcher's durable-log
// sink is its only caller.
type EventLog interface {
	AppendBatch(ctx context.Context, records []LogRecord) error
}
