// Package session owns broadcast session identity and the new-vs-continuation
// decision on reconnect.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/logging"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Resetter clears per-session pipeline state. The resolver's cooldown table
// and like cursors, the streak buffers and the live-state snapshot all start
// fresh when a new session begins; a continuation keeps them.
type Resetter interface {
	ResetSession()
}

// Manager is the session state machine: Idle, Active, Suspended, Ended.
// Lifecycle callbacks arrive from the upstream client goroutine and manual
// start/stop from HTTP handlers, so all transitions take the mutex. The
// normalizer reads CurrentRoomID/CurrentSessionID through the same lock.
type Manager struct {
	accountID           string
	store               domain.SessionStore
	archive             domain.SessionArchive
	clock               clockwork.Clock
	continuationTimeout time.Duration
	resetters           []Resetter

	mu        sync.Mutex
	current   *domain.SessionRecord
	expiry    clockwork.Timer
	lastEnded *domain.SessionRecord
}

func NewManager(accountID string, store domain.SessionStore, archive domain.SessionArchive, clock clockwork.Clock, continuationTimeout time.Duration, resetters ...Resetter) *Manager {
	return &Manager{
		accountID:           accountID,
		store:               store,
		archive:             archive,
		clock:               clock,
		continuationTimeout: continuationTimeout,
		resetters:           resetters,
	}
}

// CurrentRoomID returns the active session's room ID, or "" when idle.
func (m *Manager) CurrentRoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.RoomID
}

// CurrentSessionID returns the active session's ID, or the zero UUID.
func (m *Manager) CurrentSessionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return uuid.Nil
	}
	return m.current.SessionID
}

// Current returns a copy of the current session record, if any.
func (m *Manager) Current() *domain.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	rec := *m.current
	return &rec
}

// StartManual always opens a fresh session, even when the room matches a
// just-suspended one. A still-active session is forcibly ended first.
func (m *Manager) StartManual(ctx context.Context, roomID string) (domain.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endLocked(ctx, true, "replaced")
	return m.beginLocked(ctx, roomID, uuid.Nil), nil
}

// Connected implements the upstream lifecycle hook. A reconnect to the same
// room within the continuation window resumes the suspended session;
// everything else begins a new one.
func (m *Manager) Connected(ctx context.Context, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.State == domain.SessionSuspended {
		if m.current.RoomID == roomID && m.withinWindowLocked() {
			m.resumeLocked(ctx, roomID)
			return
		}
		m.endLocked(ctx, false, "room_changed")
	} else if m.current != nil && m.current.State == domain.SessionActive {
		if m.current.RoomID == roomID {
			// Duplicate connect for the room we are already in.
			return
		}
		m.endLocked(ctx, false, "room_changed")
	}

	if prior := m.lookupSuspendedLocked(ctx, roomID); prior != nil {
		m.current = prior
		m.resumeLocked(ctx, roomID)
		return
	}

	m.beginLocked(ctx, roomID, m.successorLocked(roomID))
}

// Disconnected suspends the active session and persists the continuity entry
// so a reconnect within the window can resume it.
func (m *Manager) Disconnected(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.State != domain.SessionActive {
		return
	}

	m.current.State = domain.SessionSuspended
	m.current.SuspendedAt = m.clock.Now()
	logging.WithSession(m.current.SessionID.String()).Info("Session suspended",
		"room_id", m.current.RoomID)

	if err := m.store.SaveSuspended(ctx, *m.current, m.continuationTimeout); err != nil {
		slog.Error("Failed to persist session continuity entry", "error", err)
	}
	m.armExpiryLocked(m.current.SessionID)
}

// LiveEnded ends the session when the broadcast itself ends.
func (m *Manager) LiveEnded(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked(ctx, false, "live_end")
}

// Stop ends the current session. Manual stops never continue on reconnect.
func (m *Manager) Stop(ctx context.Context, manual bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.ErrNoActiveSession
	}
	trigger := "timeout"
	if manual {
		trigger = "manual"
	}
	m.endLocked(ctx, manual, trigger)
	return nil
}

// beginLocked opens a new Active session and resets per-session state.
func (m *Manager) beginLocked(ctx context.Context, roomID string, continuationOf uuid.UUID) domain.SessionRecord {
	rec := domain.SessionRecord{
		SessionID:      uuid.New(),
		AccountID:      m.accountID,
		RoomID:         roomID,
		State:          domain.SessionActive,
		StartedAt:      m.clock.Now(),
		ContinuationOf: continuationOf,
	}
	m.current = &rec

	for _, r := range m.resetters {
		r.ResetSession()
	}
	if err := m.store.Delete(ctx, m.accountID, roomID); err != nil {
		slog.Warn("Failed to clear stale continuity entry", "room_id", roomID, "error", err)
	}

	metrics.SessionsStartedTotal.WithLabelValues("new").Inc()
	logging.WithSession(rec.SessionID.String()).Info("Session started", "room_id", roomID)
	return rec
}

// resumeLocked reactivates m.current in place, keeping its session ID and
// all per-session pipeline state.
func (m *Manager) resumeLocked(ctx context.Context, roomID string) {
	m.current.State = domain.SessionActive
	m.current.SuspendedAt = time.Time{}
	m.disarmExpiryLocked()

	if err := m.store.Delete(ctx, m.accountID, roomID); err != nil {
		slog.Warn("Failed to clear continuity entry after resume", "room_id", roomID, "error", err)
	}

	metrics.SessionsStartedTotal.WithLabelValues("continuation").Inc()
	logging.WithSession(m.current.SessionID.String()).Info("Session continued",
		"room_id", roomID)
}

// endLocked closes the current session, archives it and removes its
// continuity entry. No-op when nothing is active or suspended.
func (m *Manager) endLocked(ctx context.Context, manual bool, trigger string) {
	if m.current == nil || m.current.State == domain.SessionEnded {
		m.current = nil
		return
	}

	m.disarmExpiryLocked()

	rec := m.current
	rec.State = domain.SessionEnded
	rec.EndedAt = m.clock.Now()
	rec.ManuallyStopped = manual
	m.current = nil
	ended := *rec
	m.lastEnded = &ended

	if err := m.store.Delete(ctx, m.accountID, rec.RoomID); err != nil {
		slog.Warn("Failed to delete continuity entry", "room_id", rec.RoomID, "error", err)
	}
	if err := m.archive.ArchiveSession(ctx, *rec); err != nil {
		slog.Error("Failed to archive session", "session_id", rec.SessionID.String(), "error", err)
	}

	metrics.SessionsEndedTotal.WithLabelValues(trigger).Inc()
	logging.WithSession(rec.SessionID.String()).Info("Session ended",
		"room_id", rec.RoomID, "manual", manual, "trigger", trigger)
}

func (m *Manager) withinWindowLocked() bool {
	return m.clock.Now().Sub(m.current.SuspendedAt) <= m.continuationTimeout
}

// armExpiryLocked schedules the end of a suspended session once the
// continuation window lapses. Without it a suspended session with no
// reconnect would linger unarchived forever.
func (m *Manager) armExpiryLocked(sessionID uuid.UUID) {
	m.disarmExpiryLocked()
	m.expiry = m.clock.AfterFunc(m.continuationTimeout, func() {
		m.expireSuspended(sessionID)
	})
}

func (m *Manager) disarmExpiryLocked() {
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
}

func (m *Manager) expireSuspended(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A resume or manual start may have raced the timer firing.
	if m.current == nil || m.current.State != domain.SessionSuspended || m.current.SessionID != sessionID {
		return
	}
	m.endLocked(context.Background(), false, "timeout")
}

// successorLocked links a new session to the one that just timed out in the
// same room, so analytics can stitch the broadcast back together. Manual
// stops are a deliberate break and never produce lineage.
func (m *Manager) successorLocked(roomID string) uuid.UUID {
	if m.lastEnded == nil || m.lastEnded.RoomID != roomID || m.lastEnded.ManuallyStopped {
		return uuid.Nil
	}
	return m.lastEnded.SessionID
}

// lookupSuspendedLocked checks the continuity store for a suspended session
// persisted by an earlier process. The store's TTL enforces the window.
func (m *Manager) lookupSuspendedLocked(ctx context.Context, roomID string) *domain.SessionRecord {
	prior, err := m.store.LookupByRoom(ctx, m.accountID, roomID)
	if err != nil {
		slog.Warn("Continuity lookup failed", "room_id", roomID, "error", err)
		return nil
	}
	if prior == nil || prior.ManuallyStopped {
		return nil
	}
	return prior
}
