// Package streak collapses TikTok-style gift streaks into single counted
// events.
package streak

import (
	"log/slog"
	"sync"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// DefaultStaleness matches the device heartbeat timeout: a streak abandoned
// for that long is flushed as final to bound memory.
const DefaultStaleness = 15 * time.Second

type streakKey struct {
	userID string
	giftID string
}

type streakBuffer struct {
	event     domain.CanonicalEvent
	count     int64
	firstSeen time.Time
}

// Aggregator buffers in-progress streaks and emits one aggregated gift event
// per completed streak. Offer runs on the ingestion goroutine, but FlushAll
// also arrives from session lifecycle callers, so the buffer map is
// mutex-guarded.
type Aggregator struct {
	clock     clockwork.Clock
	staleness time.Duration

	mu      sync.Mutex
	buffers map[streakKey]*streakBuffer
}

func NewAggregator(clock clockwork.Clock, staleness time.Duration) *Aggregator {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Aggregator{
		clock:     clock,
		staleness: staleness,
		buffers:   make(map[streakKey]*streakBuffer),
	}
}

// Offer consumes a gift event. It returns a non-nil aggregate exactly once
// per streak lifecycle: on the terminal event, or immediately for
// non-streakable gifts. Pending streak updates return nil.
func (a *Aggregator) Offer(ev domain.CanonicalEvent) *domain.AggregatedGift {
	gift := ev.Gift
	if gift == nil {
		slog.Warn("Gift event without payload dropped", "user_id", ev.UserID)
		return nil
	}

	key := streakKey{userID: ev.UserID, giftID: gift.GiftID}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gift.Streakable && !gift.RepeatEnd {
		buf, exists := a.buffers[key]
		if !exists {
			buf = &streakBuffer{event: ev, firstSeen: a.clock.Now()}
			a.buffers[key] = buf
			metrics.StreaksPending.Set(float64(len(a.buffers)))
		}
		buf.event = ev
		buf.count = gift.RepeatCount
		return nil
	}

	// Final: terminal streak event or non-streakable gift. The terminal
	// repeat_count already carries the full streak total, so a missing
	// buffer (out-of-order or single-shot) is not an error.
	if _, exists := a.buffers[key]; exists {
		if !gift.Streakable {
			// Flags flipped mid-streak; treat as a non-streak final.
			slog.Warn("Streak buffer hit by non-streakable gift",
				"user_id", ev.UserID, "gift_id", gift.GiftID, "error", domain.ErrStreakState)
		}
		a.discard(key)
	}

	metrics.StreaksCompletedTotal.Inc()
	return aggregate(ev, gift.RepeatCount)
}

// FlushStale force-flushes buffers older than the staleness window as final.
// The pipeline calls it on a timer tick.
func (a *Aggregator) FlushStale() []domain.AggregatedGift {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	var out []domain.AggregatedGift
	for key, buf := range a.buffers {
		if now.Sub(buf.firstSeen) < a.staleness {
			continue
		}
		slog.Info("Force-flushing stale streak",
			"user_id", key.userID, "gift_id", key.giftID, "count", buf.count)
		metrics.StreaksForceFlushedTotal.Inc()
		out = append(out, *aggregate(buf.event, buf.count))
		a.discard(key)
	}
	return out
}

// FlushAll drains every pending buffer as final. Called on session end.
func (a *Aggregator) FlushAll() []domain.AggregatedGift {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []domain.AggregatedGift
	for key, buf := range a.buffers {
		out = append(out, *aggregate(buf.event, buf.count))
		a.discard(key)
	}
	return out
}

// Pending reports the number of open streak buffers.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

func (a *Aggregator) discard(key streakKey) {
	delete(a.buffers, key)
	metrics.StreaksPending.Set(float64(len(a.buffers)))
}

func aggregate(ev domain.CanonicalEvent, total int64) *domain.AggregatedGift {
	if total < 1 {
		total = 1
	}
	gift := ev.Gift
	return &domain.AggregatedGift{
		UserID:      ev.UserID,
		DisplayName: ev.DisplayName,
		RoomID:      ev.RoomID,
		SessionID:   ev.SessionID,
		GiftID:      gift.GiftID,
		GiftName:    gift.Name,
		UnitValue:   gift.UnitValue,
		TotalCount:  total,
		TotalValue:  total * gift.UnitValue,
		Timestamp:   ev.Timestamp,
	}
}
