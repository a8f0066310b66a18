package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

func TestLeaderboardRanksByCoins(t *testing.T) {
	s := NewLiveState()
	sid := uuid.New()

	s.ApplyGift(domain.AggregatedGift{SessionID: sid, UserID: "alice", DisplayName: "Alice", GiftName: "Rose", TotalCount: 2, TotalValue: 2})
	s.ApplyGift(domain.AggregatedGift{SessionID: sid, UserID: "bob", DisplayName: "Bob", GiftName: "Galaxy", TotalCount: 1, TotalValue: 1000})
	s.ApplyGift(domain.AggregatedGift{SessionID: sid, UserID: "alice", DisplayName: "Alice", GiftName: "Rose", TotalCount: 3, TotalValue: 3})

	snap := s.Snapshot()
	require.Len(t, snap.Leaderboard, 2)
	assert.Equal(t, "bob", snap.Leaderboard[0].UserID)
	assert.Equal(t, 1, snap.Leaderboard[0].Rank)
	assert.Equal(t, int64(1000), snap.Leaderboard[0].TotalCoins)
	assert.Equal(t, "alice", snap.Leaderboard[1].UserID)
	assert.Equal(t, 2, snap.Leaderboard[1].Rank)
	assert.Equal(t, int64(5), snap.Leaderboard[1].TotalCoins)
	assert.Equal(t, int64(5), snap.Leaderboard[1].GiftCount)
}

func TestCountersAccumulate(t *testing.T) {
	s := NewLiveState()
	sid := uuid.New()

	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventComment, SessionID: sid, Comment: "hi"})
	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventLike, SessionID: sid, LikeCount: 15})
	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventFollow, SessionID: sid})
	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventShare, SessionID: sid})
	s.ApplyGift(domain.AggregatedGift{SessionID: sid, UserID: "alice", TotalCount: 2, TotalValue: 200})

	c := s.Snapshot().Counters
	assert.Equal(t, int64(1), c.Comments)
	assert.Equal(t, int64(15), c.Likes)
	assert.Equal(t, int64(1), c.Follows)
	assert.Equal(t, int64(1), c.Shares)
	assert.Equal(t, int64(2), c.Gifts)
	assert.Equal(t, int64(200), c.GiftValue)
	assert.InDelta(t, 1.0, c.GiftValueUSD, 0.001)
}

func TestViewerPeakTracksHighWaterMark(t *testing.T) {
	s := NewLiveState()

	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventViewerCount, ViewerCount: 50})
	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventViewerCount, ViewerCount: 120})
	s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventViewerCount, ViewerCount: 80})

	c := s.Snapshot().Counters
	assert.Equal(t, int64(80), c.Viewers)
	assert.Equal(t, int64(120), c.PeakViewers)
}

func TestFeedRingKeepsLatestOldestFirst(t *testing.T) {
	s := NewLiveState()

	for i := 0; i < feedCapacity+10; i++ {
		s.ApplyEvent(domain.CanonicalEvent{
			Kind:        domain.EventComment,
			DisplayName: "u",
			Comment:     fmt.Sprintf("msg-%d", i),
			Timestamp:   time.Unix(int64(i), 0),
		})
	}

	recent := s.Snapshot().RecentEvents
	require.Len(t, recent, feedCapacity)
	assert.Equal(t, "msg-10", recent[0].Summary)
	assert.Equal(t, fmt.Sprintf("msg-%d", feedCapacity+9), recent[len(recent)-1].Summary)
}

func TestResetClearsSessionState(t *testing.T) {
	s := NewLiveState()
	s.ApplyGift(domain.AggregatedGift{UserID: "alice", TotalCount: 1, TotalValue: 10})
	s.SetDeviceStats(domain.DeviceStats{Status: domain.DeviceConnected})

	s.Reset()

	snap := s.Snapshot()
	assert.Empty(t, snap.Leaderboard)
	assert.Empty(t, snap.RecentEvents)
	assert.Equal(t, domain.Counters{}, snap.Counters)
	// Device state survives: it belongs to the hardware, not the session.
	assert.Equal(t, domain.DeviceConnected, snap.Device.Status)
}

func TestApplyConcurrentWithReset(t *testing.T) {
	s := NewLiveState()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.ApplyEvent(domain.CanonicalEvent{Kind: domain.EventComment, Comment: "hi"})
			s.ApplyGift(domain.AggregatedGift{UserID: "alice", TotalCount: 1, TotalValue: 1})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Reset()
			s.Snapshot()
		}
	}()
	wg.Wait()
}

func TestSnapshotComposesDeviceStats(t *testing.T) {
	s := NewLiveState()
	s.SetDeviceStats(domain.DeviceStats{Status: domain.DeviceConnected, CommandsSent: 7, CommandsOK: 6})

	snap := s.Snapshot()
	assert.Equal(t, int64(7), snap.Device.CommandsSent)
	assert.Equal(t, int64(6), snap.Device.CommandsOK)
}
