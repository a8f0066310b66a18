package ingress

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

type fakeRooms struct {
	roomID    string
	sessionID uuid.UUID
}

func (f *fakeRooms) CurrentRoomID() string       { return f.roomID }
func (f *fakeRooms) CurrentSessionID() uuid.UUID { return f.sessionID }

func newTestNormalizer(clock clockwork.Clock) (*Normalizer, *fakeRooms) {
	rooms := &fakeRooms{roomID: "room-1", sessionID: uuid.New()}
	return NewNormalizer(rooms, clock), rooms
}

func raw(kind, data string) RawEvent {
	return RawEvent{
		Type:        kind,
		Username:    "alice",
		DisplayName: "Alice",
		TimestampMs: 1700000000000,
		Data:        json.RawMessage(data),
	}
}

func TestNormalizeGift(t *testing.T) {
	n, rooms := newTestNormalizer(clockwork.NewFakeClock())

	ev, err := n.Normalize(raw("gift", `{"gift_id":"rose","name":"Rose","diamond_count":1,"repeat_count":3,"streakable":true,"repeat_end":false}`))
	require.NoError(t, err)

	assert.Equal(t, domain.EventGift, ev.Kind)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, "room-1", ev.RoomID)
	assert.Equal(t, rooms.sessionID, ev.SessionID)
	require.NotNil(t, ev.Gift)
	assert.Equal(t, "rose", ev.Gift.GiftID)
	assert.Equal(t, int64(1), ev.Gift.UnitValue)
	assert.Equal(t, int64(3), ev.Gift.RepeatCount)
	assert.True(t, ev.Gift.Streakable)
	assert.False(t, ev.Gift.RepeatEnd)
}

func TestNormalizeGiftDefaultsRepeatCount(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	ev, err := n.Normalize(raw("gift", `{"gift_id":"rose","diamond_count":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Gift.RepeatCount)
}

func TestNormalizeChatAliasMapsToComment(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	ev, err := n.Normalize(raw("chat", `{"comment":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventComment, ev.Kind)
	assert.Equal(t, "hello", ev.Comment)
}

func TestNormalizeRoomUserSeqMapsToViewerCount(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	ev, err := n.Normalize(raw("room_user_seq", `{"total":321}`))
	require.NoError(t, err)
	assert.Equal(t, domain.EventViewerCount, ev.Kind)
	assert.Equal(t, int64(321), ev.ViewerCount)
}

func TestNormalizeLikeDefaultsCount(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	ev, err := n.Normalize(raw("like", `{"total_count":50}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.LikeCount)
}

func TestNormalizeUnknownKind(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	_, err := n.Normalize(raw("subscribe", `{}`))
	assert.True(t, errors.Is(err, domain.ErrUnrecognizedEventKind))
}

func TestNormalizeBadPayload(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	_, err := n.Normalize(raw("gift", `{"diamond_count":"lots"}`))
	assert.Error(t, err)
}

func TestSequencesIncreasePerKind(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	first, err := n.Normalize(raw("comment", `{"comment":"a"}`))
	require.NoError(t, err)
	second, err := n.Normalize(raw("comment", `{"comment":"b"}`))
	require.NoError(t, err)
	like, err := n.Normalize(raw("like", `{"count":1}`))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, uint64(1), like.Sequence)
}

func TestSequenceNotConsumedByRejectedEvent(t *testing.T) {
	n, _ := newTestNormalizer(clockwork.NewFakeClock())

	_, err := n.Normalize(raw("comment", `not json`))
	require.Error(t, err)

	ev, err := n.Normalize(raw("comment", `{"comment":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Sequence)
}

func TestTimestampFallsBackToClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1234, 0))
	n, _ := newTestNormalizer(clock)

	ev, err := n.Normalize(RawEvent{Type: "follow", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1234, 0), ev.Timestamp)

	ev, err = n.Normalize(raw("follow", ``))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), ev.Timestamp)
}
