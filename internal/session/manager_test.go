package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

type storedEntry struct {
	rec       domain.SessionRecord
	expiresAt time.Time
}

// fakeStore keeps continuity entries in memory and enforces the TTL against
// the fake clock, matching how the redis-backed store behaves.
type fakeStore struct {
	clock   clockwork.Clock
	entries map[string]storedEntry
}

func newFakeStore(clock clockwork.Clock) *fakeStore {
	return &fakeStore{clock: clock, entries: make(map[string]storedEntry)}
}

func (s *fakeStore) key(accountID, roomID string) string { return accountID + "/" + roomID }

func (s *fakeStore) SaveSuspended(_ context.Context, rec domain.SessionRecord, ttl time.Duration) error {
	s.entries[s.key(rec.AccountID, rec.RoomID)] = storedEntry{rec: rec, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *fakeStore) LookupByRoom(_ context.Context, accountID, roomID string) (*domain.SessionRecord, error) {
	entry, ok := s.entries[s.key(accountID, roomID)]
	if !ok || s.clock.Now().After(entry.expiresAt) {
		return nil, nil
	}
	rec := entry.rec
	return &rec, nil
}

func (s *fakeStore) Delete(_ context.Context, accountID, roomID string) error {
	delete(s.entries, s.key(accountID, roomID))
	return nil
}

type fakeArchive struct {
	archived []domain.SessionRecord
}

func (a *fakeArchive) ArchiveSession(_ context.Context, rec domain.SessionRecord) error {
	a.archived = append(a.archived, rec)
	return nil
}

type countingResetter struct {
	calls int
}

func (r *countingResetter) ResetSession() { r.calls++ }

type managerHarness struct {
	clock   clockwork.FakeClock
	store   *fakeStore
	archive *fakeArchive
	reset   *countingResetter
	mgr     *Manager
}

func newHarness() *managerHarness {
	h := &managerHarness{
		clock:   clockwork.NewFakeClock(),
		archive: &fakeArchive{},
		reset:   &countingResetter{},
	}
	h.store = newFakeStore(h.clock)
	h.mgr = NewManager("acct-1", h.store, h.archive, h.clock, 5*time.Minute, h.reset)
	return h
}

func TestConnectBeginsNewSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")

	rec := h.mgr.Current()
	require.NotNil(t, rec)
	assert.Equal(t, domain.SessionActive, rec.State)
	assert.Equal(t, "room-1", rec.RoomID)
	assert.Equal(t, "room-1", h.mgr.CurrentRoomID())
	assert.NotEqual(t, uuid.Nil, h.mgr.CurrentSessionID())
	assert.Equal(t, 1, h.reset.calls)
}

func TestReconnectSameRoomWithinWindowContinues(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()

	h.mgr.Disconnected(ctx)
	require.Equal(t, domain.SessionSuspended, h.mgr.Current().State)

	h.clock.Advance(2 * time.Minute)
	h.mgr.Connected(ctx, "room-1")

	assert.Equal(t, first, h.mgr.CurrentSessionID())
	assert.Equal(t, domain.SessionActive, h.mgr.Current().State)
	// Per-session state survives a continuation.
	assert.Equal(t, 1, h.reset.calls)
	assert.Empty(t, h.archive.archived)
}

func TestReconnectAfterWindowStartsFresh(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	h.clock.Advance(6 * time.Minute)
	h.mgr.Connected(ctx, "room-1")

	assert.NotEqual(t, first, h.mgr.CurrentSessionID())
	assert.Equal(t, 2, h.reset.calls)
	require.Len(t, h.archive.archived, 1)
	assert.Equal(t, first, h.archive.archived[0].SessionID)
}

func TestReconnectDifferentRoomStartsFresh(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	h.clock.Advance(time.Minute)
	h.mgr.Connected(ctx, "room-2")

	assert.NotEqual(t, first, h.mgr.CurrentSessionID())
	assert.Equal(t, "room-2", h.mgr.CurrentRoomID())
	require.Len(t, h.archive.archived, 1)
}

func TestContinuationAcrossRestartUsesStore(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(clock)
	ctx := context.Background()

	// First process suspends and goes away.
	firstArchive := &fakeArchive{}
	first := NewManager("acct-1", store, firstArchive, clock, 5*time.Minute)
	first.Connected(ctx, "room-1")
	originalID := first.CurrentSessionID()
	first.Disconnected(ctx)

	// A fresh manager finds the persisted entry and resumes the session.
	clock.Advance(time.Minute)
	second := NewManager("acct-1", store, &fakeArchive{}, clock, 5*time.Minute)
	second.Connected(ctx, "room-1")

	assert.Equal(t, originalID, second.CurrentSessionID())
}

func TestManualStartAlwaysBeginsNew(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	rec, err := h.mgr.StartManual(ctx, "room-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, rec.SessionID)
	assert.Equal(t, domain.SessionActive, rec.State)
	require.Len(t, h.archive.archived, 1)
}

func TestManualStopPreventsContinuation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()

	require.NoError(t, h.mgr.Stop(ctx, true))
	assert.Nil(t, h.mgr.Current())
	require.Len(t, h.archive.archived, 1)
	assert.True(t, h.archive.archived[0].ManuallyStopped)

	h.mgr.Connected(ctx, "room-1")
	assert.NotEqual(t, first, h.mgr.CurrentSessionID())
}

func TestStopWithoutSession(t *testing.T) {
	h := newHarness()
	err := h.mgr.Stop(context.Background(), true)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestLiveEndedArchivesSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	id := h.mgr.CurrentSessionID()
	h.mgr.LiveEnded(ctx)

	assert.Nil(t, h.mgr.Current())
	assert.Equal(t, "", h.mgr.CurrentRoomID())
	assert.Equal(t, uuid.Nil, h.mgr.CurrentSessionID())
	require.Len(t, h.archive.archived, 1)
	assert.Equal(t, id, h.archive.archived[0].SessionID)
	assert.False(t, h.archive.archived[0].ManuallyStopped)
}

func TestSuspendedSessionExpiresAfterWindow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	// No reconnect arrives; the continuation window lapsing ends the session.
	h.clock.Advance(5 * time.Minute)

	require.Eventually(t, func() bool {
		return h.mgr.Current() == nil
	}, time.Second, time.Millisecond)
	require.Len(t, h.archive.archived, 1)
	assert.Equal(t, first, h.archive.archived[0].SessionID)
	assert.False(t, h.archive.archived[0].ManuallyStopped)
	assert.False(t, h.archive.archived[0].EndedAt.IsZero())
}

func TestResumeCancelsExpiry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	h.clock.Advance(2 * time.Minute)
	h.mgr.Connected(ctx, "room-1")
	require.Equal(t, first, h.mgr.CurrentSessionID())

	// Long after the original window, the resumed session is untouched.
	h.clock.Advance(10 * time.Minute)
	rec := h.mgr.Current()
	require.NotNil(t, rec)
	assert.Equal(t, domain.SessionActive, rec.State)
	assert.Empty(t, h.archive.archived)
}

func TestExpiredWindowSuccessorLinksPredecessor(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Disconnected(ctx)

	h.clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool {
		return h.mgr.Current() == nil
	}, time.Second, time.Millisecond)

	h.mgr.Connected(ctx, "room-1")
	rec := h.mgr.Current()
	require.NotNil(t, rec)
	assert.NotEqual(t, first, rec.SessionID)
	assert.Equal(t, first, rec.ContinuationOf)
}

func TestManualStopBreaksLineage(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	require.NoError(t, h.mgr.Stop(ctx, true))

	h.mgr.Connected(ctx, "room-1")
	rec := h.mgr.Current()
	require.NotNil(t, rec)
	assert.Equal(t, uuid.Nil, rec.ContinuationOf)
}

func TestDuplicateConnectKeepsSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.mgr.Connected(ctx, "room-1")
	first := h.mgr.CurrentSessionID()
	h.mgr.Connected(ctx, "room-1")

	assert.Equal(t, first, h.mgr.CurrentSessionID())
	assert.Equal(t, 1, h.reset.calls)
}
