package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	readLimit      = 1 << 20
)

// Lifecycle receives upstream connection transitions. The session continuity
// manager implements it to decide new-vs-continuation on reconnect.
type Lifecycle interface {
	Connected(ctx context.Context, roomID string)
	Disconnected(ctx context.Context)
	LiveEnded(ctx context.Context)
}

// Client maintains the upstream event-source connection and feeds raw events
// into a channel. It reconnects with capped exponential backoff and never
// returns until its context is cancelled.
type Client struct {
	url       string
	lifecycle Lifecycle
	clock     clockwork.Clock
	out       chan RawEvent
}

func NewClient(url string, lifecycle Lifecycle, clock clockwork.Clock) *Client {
	return &Client{
		url:       url,
		lifecycle: lifecycle,
		clock:     clock,
		out:       make(chan RawEvent, 256),
	}
}

// Events returns the raw event stream. Closed when Run exits.
func (c *Client) Events() <-chan RawEvent {
	return c.out
}

// Run blocks, maintaining the connection until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	defer close(c.out)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("Upstream dial failed", "url", c.url, "error", err, "retry_in", backoff)
			metrics.UpstreamReconnectsTotal.Inc()
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		c.readLoop(ctx, conn)
		c.lifecycle.Disconnected(ctx)

		if ctx.Err() != nil {
			return
		}
		slog.Info("Upstream connection lost, reconnecting")
		metrics.UpstreamReconnectsTotal.Inc()
		if !c.sleep(ctx, backoff) {
			return
		}
	}
}

// readLoop consumes one connection until it fails or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(readLimit)

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Upstream read failed", "error", err)
			}
			return
		}

		var raw RawEvent
		if err := json.Unmarshal(data, &raw); err != nil {
			slog.Warn("Malformed upstream message", "error", err)
			continue
		}

		switch raw.Type {
		case "connect":
			c.lifecycle.Connected(ctx, raw.RoomID)
		case "disconnect":
			c.lifecycle.Disconnected(ctx)
		case "live_end":
			c.lifecycle.LiveEnded(ctx)
		default:
			select {
			case c.out <- raw:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
