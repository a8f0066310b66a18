// Package dispatch fans resolved commands and canonical events out to the
// three sinks: the actuator queue, the live-state snapshot and the durable
// event log. No sink's failure propagates to another.
package dispatch

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/google/uuid"
)

// Dispatcher owns the actuator queue and the live state. DispatchCommand and
// the Observe methods are called from the single ingestion goroutine; the
// actuator consumer and snapshot readers run concurrently.
type Dispatcher struct {
	actuatorCh chan domain.ResolvedCommand
	live       *LiveState
	durable    *Batcher
}

func NewDispatcher(queueSize int, live *LiveState, durable *Batcher) *Dispatcher {
	return &Dispatcher{
		actuatorCh: make(chan domain.ResolvedCommand, queueSize),
		live:       live,
		durable:    durable,
	}
}

// Commands is the actuator consumer's intake. Per-device ordering is the
// order commands were resolved.
func (d *Dispatcher) Commands() <-chan domain.ResolvedCommand {
	return d.actuatorCh
}

// Live exposes the snapshot sink for readers.
func (d *Dispatcher) Live() *LiveState {
	return d.live
}

// DispatchCommand enqueues a command for the actuator. On overflow the
// oldest queued command is dropped so physical responses stay fresh.
func (d *Dispatcher) DispatchCommand(cmd domain.ResolvedCommand) {
	for {
		select {
		case d.actuatorCh <- cmd:
			metrics.ActuatorQueueDepth.Set(float64(len(d.actuatorCh)))
			return
		default:
		}
		select {
		case old := <-d.actuatorCh:
			slog.Warn("Actuator queue full, dropping oldest command",
				"dropped_rule", old.RuleID, "dropped_id", old.ID.String())
			metrics.ActuatorDroppedTotal.Inc()
		default:
		}
	}
}

// ObserveEvent feeds one canonical event to the live-state and durable sinks.
func (d *Dispatcher) ObserveEvent(ev domain.CanonicalEvent) {
	d.live.ApplyEvent(ev)
	d.appendLog(ev.SessionID, string(ev.Kind), ev.UserID, ev.Timestamp, eventPayload(ev))
}

// ObserveGift feeds one aggregated gift to the live-state and durable sinks.
func (d *Dispatcher) ObserveGift(gift domain.AggregatedGift) {
	d.live.ApplyGift(gift)
	payload, err := json.Marshal(gift)
	if err != nil {
		slog.Error("Failed to marshal gift for durable log", "error", err)
		return
	}
	d.appendLog(gift.SessionID, "gift_aggregate", gift.UserID, gift.Timestamp, payload)
}

func (d *Dispatcher) appendLog(sessionID uuid.UUID, kind, userID string, ts time.Time, payload []byte) {
	d.durable.Append(domain.LogRecord{
		SessionID: sessionID,
		Kind:      kind,
		UserID:    userID,
		Payload:   payload,
		Timestamp: ts,
	})
}

func eventPayload(ev domain.CanonicalEvent) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal event for durable log", "error", err)
		return nil
	}
	return payload
}
