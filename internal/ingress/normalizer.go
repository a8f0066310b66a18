// Package ingress converts heterogeneous upstream payloads into canonical
// events and owns the upstream connection.
package ingress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// RawEvent is the upstream wire shape. Type-specific fields live in Data and
// are decoded per kind.
type RawEvent struct {
	Type        string          `json:"type"`
	Username    string          `json:"username"`
	DisplayName string          `json:"nickname"`
	RoomID      string          `json:"room_id"`
	TimestampMs int64           `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

type giftData struct {
	GiftID       string `json:"gift_id"`
	Name         string `json:"name"`
	DiamondCount int64  `json:"diamond_count"`
	RepeatCount  int64  `json:"repeat_count"`
	Streakable   bool   `json:"streakable"`
	RepeatEnd    bool   `json:"repeat_end"`
}

type commentData struct {
	Text string `json:"comment"`
}

type likeData struct {
	Count      int64 `json:"count"`
	TotalCount int64 `json:"total_count"`
}

type viewerData struct {
	Total int64 `json:"total"`
}

// Normalizer tags raw events with the active session identity and a strictly
// increasing per-kind sequence number. Not safe for concurrent use; the
// ingestion loop is its single caller.
type Normalizer struct {
	rooms     domain.RoomIDSource
	clock     clockwork.Clock
	sequences map[domain.EventKind]uint64
}

func NewNormalizer(rooms domain.RoomIDSource, clock clockwork.Clock) *Normalizer {
	return &Normalizer{
		rooms:     rooms,
		clock:     clock,
		sequences: make(map[domain.EventKind]uint64),
	}
}

// Normalize converts a raw upstream event into its canonical form. Unknown
// kinds return domain.ErrUnrecognizedEventKind; the caller logs and drops.
func (n *Normalizer) Normalize(raw RawEvent) (domain.CanonicalEvent, error) {
	kind, ok := kindOf(raw.Type)
	if !ok {
		metrics.EventsUnrecognizedTotal.Inc()
		return domain.CanonicalEvent{}, fmt.Errorf("%w: %q", domain.ErrUnrecognizedEventKind, raw.Type)
	}

	ev := domain.CanonicalEvent{
		Kind:        kind,
		UserID:      raw.Username,
		DisplayName: raw.DisplayName,
		RoomID:      n.rooms.CurrentRoomID(),
		SessionID:   n.rooms.CurrentSessionID(),
		Timestamp:   n.eventTime(raw),
	}

	switch kind {
	case domain.EventGift:
		var d giftData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("failed to decode gift payload: %w", err)
		}
		if d.RepeatCount < 1 {
			d.RepeatCount = 1
		}
		ev.Gift = &domain.GiftPayload{
			GiftID:      d.GiftID,
			Name:        d.Name,
			UnitValue:   d.DiamondCount,
			RepeatCount: d.RepeatCount,
			Streakable:  d.Streakable,
			RepeatEnd:   d.RepeatEnd,
		}
	case domain.EventComment:
		var d commentData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("failed to decode comment payload: %w", err)
		}
		ev.Comment = d.Text
	case domain.EventLike:
		var d likeData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("failed to decode like payload: %w", err)
		}
		if d.Count < 1 {
			d.Count = 1
		}
		ev.LikeCount = d.Count
	case domain.EventViewerCount:
		var d viewerData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("failed to decode viewer payload: %w", err)
		}
		ev.ViewerCount = d.Total
	}

	n.sequences[kind]++
	ev.Sequence = n.sequences[kind]

	metrics.EventsNormalizedTotal.WithLabelValues(string(kind)).Inc()
	return ev, nil
}

func (n *Normalizer) eventTime(raw RawEvent) time.Time {
	if raw.TimestampMs > 0 {
		return time.UnixMilli(raw.TimestampMs)
	}
	return n.clock.Now()
}

func kindOf(t string) (domain.EventKind, bool) {
	switch t {
	case "gift":
		return domain.EventGift, true
	case "comment", "chat":
		return domain.EventComment, true
	case "like":
		return domain.EventLike, true
	case "follow":
		return domain.EventFollow, true
	case "share":
		return domain.EventShare, true
	case "viewer_count", "room_user_seq":
		return domain.EventViewerCount, true
	default:
		return "", false
	}
}
