package dispatch

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/google/uuid"
)

const feedCapacity = 50

// usdPerDiamond converts TikTok diamond counts to a display value.
const usdPerDiamond = 0.005

type gifterTotals struct {
	displayName string
	totalCoins  int64
	giftCount   int64
}

// LiveState is the in-memory snapshot sink. Writes come from the ingestion
// goroutine and, on session transitions, from lifecycle callers, so mutation
// takes the mutex; readers load the last published snapshot without blocking.
// Published slices are never mutated afterwards.
type LiveState struct {
	mu       sync.Mutex
	gifters  map[string]*gifterTotals
	counters domain.Counters
	feed     []domain.FeedItem
	feedNext int

	current atomic.Pointer[domain.LiveSnapshot]
	device  atomic.Pointer[domain.DeviceStats]
}

func NewLiveState() *LiveState {
	s := &LiveState{
		gifters: make(map[string]*gifterTotals),
		feed:    make([]domain.FeedItem, 0, feedCapacity),
	}
	s.current.Store(&domain.LiveSnapshot{})
	s.device.Store(&domain.DeviceStats{Status: domain.DeviceDisconnected})
	return s
}

// ApplyEvent folds one canonical event into the counters and feed, then
// republishes the snapshot.
func (s *LiveState) ApplyEvent(ev domain.CanonicalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case domain.EventComment:
		s.counters.Comments++
		s.pushFeed(ev.Kind, ev.DisplayName, ev.Comment, ev.Timestamp)
	case domain.EventLike:
		s.counters.Likes += ev.LikeCount
	case domain.EventFollow:
		s.counters.Follows++
		s.pushFeed(ev.Kind, ev.DisplayName, "followed", ev.Timestamp)
	case domain.EventShare:
		s.counters.Shares++
		s.pushFeed(ev.Kind, ev.DisplayName, "shared the stream", ev.Timestamp)
	case domain.EventViewerCount:
		s.counters.Viewers = ev.ViewerCount
		if ev.ViewerCount > s.counters.PeakViewers {
			s.counters.PeakViewers = ev.ViewerCount
		}
	}
	s.publish(ev.SessionID, ev.Timestamp)
}

// ApplyGift folds one aggregated gift into the leaderboard and counters.
func (s *LiveState) ApplyGift(gift domain.AggregatedGift) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gifters[gift.UserID]
	if !ok {
		g = &gifterTotals{displayName: gift.DisplayName}
		s.gifters[gift.UserID] = g
	}
	g.displayName = gift.DisplayName
	g.totalCoins += gift.TotalValue
	g.giftCount += gift.TotalCount

	s.counters.Gifts += gift.TotalCount
	s.counters.GiftValue += gift.TotalValue
	s.counters.GiftValueUSD = float64(s.counters.GiftValue) * usdPerDiamond

	summary := fmt.Sprintf("sent %s x%d (%d coins)", gift.GiftName, gift.TotalCount, gift.TotalValue)
	s.pushFeed(domain.EventGift, gift.DisplayName, summary, gift.Timestamp)
	s.publish(gift.SessionID, gift.Timestamp)
}

// Reset clears all per-session state. Called on session start.
func (s *LiveState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gifters = make(map[string]*gifterTotals)
	s.counters = domain.Counters{}
	s.feed = s.feed[:0]
	s.feedNext = 0
	s.current.Store(&domain.LiveSnapshot{})
}

// Snapshot returns the latest immutable view. Safe for arbitrary readers.
func (s *LiveState) Snapshot() domain.LiveSnapshot {
	snap := *s.current.Load()
	snap.Device = *s.device.Load()
	return snap
}

// SetDeviceStats is called by the actuator engine, the sole writer of device
// state. It is stored separately so engine updates never race the dispatcher.
func (s *LiveState) SetDeviceStats(stats domain.DeviceStats) {
	s.device.Store(&stats)
}

func (s *LiveState) pushFeed(kind domain.EventKind, name, summary string, ts time.Time) {
	item := domain.FeedItem{Kind: kind, DisplayName: name, Summary: summary, Timestamp: ts}
	if len(s.feed) < feedCapacity {
		s.feed = append(s.feed, item)
	} else {
		s.feed[s.feedNext] = item
		s.feedNext = (s.feedNext + 1) % feedCapacity
	}
}

func (s *LiveState) publish(sessionID uuid.UUID, ts time.Time) {
	leaderboard := make([]domain.LeaderboardEntry, 0, len(s.gifters))
	for userID, g := range s.gifters {
		leaderboard = append(leaderboard, domain.LeaderboardEntry{
			UserID:      userID,
			DisplayName: g.displayName,
			TotalCoins:  g.totalCoins,
			GiftCount:   g.giftCount,
		})
	}
	sort.Slice(leaderboard, func(i, j int) bool {
		if leaderboard[i].TotalCoins != leaderboard[j].TotalCoins {
			return leaderboard[i].TotalCoins > leaderboard[j].TotalCoins
		}
		return leaderboard[i].UserID < leaderboard[j].UserID
	})
	for i := range leaderboard {
		leaderboard[i].Rank = i + 1
	}

	// Oldest-first copy of the ring.
	recent := make([]domain.FeedItem, 0, len(s.feed))
	if len(s.feed) == feedCapacity {
		recent = append(recent, s.feed[s.feedNext:]...)
		recent = append(recent, s.feed[:s.feedNext]...)
	} else {
		recent = append(recent, s.feed...)
	}

	s.current.Store(&domain.LiveSnapshot{
		SessionID:    sessionID,
		Leaderboard:  leaderboard,
		Counters:     s.counters,
		RecentEvents: recent,
		UpdatedAt:    ts,
	})
}
