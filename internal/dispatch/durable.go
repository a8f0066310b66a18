package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/jonboulle/clockwork"
)

const (
	flushAttempts      = 3
	flushBackoff       = 500 * time.Millisecond
	flushTimeout       = 5 * time.Second
	maxBufferedRecords = 5000
)

// Batcher is the durable-log sink. It buffers records and flushes when either
// BatchSize records accumulate or BatchInterval elapses, whichever first.
// Flush failures are retried with backoff and never block the other sinks;
// the intake is non-blocking and sheds load beyond maxBufferedRecords.
type Batcher struct {
	log      domain.EventLog
	clock    clockwork.Clock
	size     int
	interval time.Duration

	in     chan domain.LogRecord
	buffer []domain.LogRecord
	done   chan struct{}
}

func NewBatcher(log domain.EventLog, clock clockwork.Clock, size int, interval time.Duration) *Batcher {
	return &Batcher{
		log:      log,
		clock:    clock,
		size:     size,
		interval: interval,
		in:       make(chan domain.LogRecord, 1024),
		done:     make(chan struct{}),
	}
}

// Append hands a record to the batcher without blocking. Records are dropped
// with a log line when the intake is saturated; durability is best-effort by
// design and must not slow the real-time path.
func (b *Batcher) Append(rec domain.LogRecord) {
	select {
	case b.in <- rec:
	default:
		slog.Warn("Durable-log intake full, dropping record", "kind", rec.Kind)
		metrics.BatchFlushesTotal.WithLabelValues("dropped").Inc()
	}
}

// Run drains the intake until ctx is cancelled, then performs a final flush.
func (b *Batcher) Run(ctx context.Context) {
	defer close(b.done)

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-b.in:
			b.buffer = append(b.buffer, rec)
			if len(b.buffer) > maxBufferedRecords {
				over := len(b.buffer) - maxBufferedRecords
				b.buffer = b.buffer[over:]
				slog.Warn("Durable-log buffer overflow, discarding oldest", "discarded", over)
			}
			metrics.BatchBufferedRecords.Set(float64(len(b.buffer)))
			if len(b.buffer) >= b.size {
				b.flush(ctx)
			}
		case <-ticker.Chan():
			if len(b.buffer) > 0 {
				b.flush(ctx)
			}
		case <-ctx.Done():
			b.drainIntake()
			if len(b.buffer) > 0 {
				b.flush(context.Background())
			}
			return
		}
	}
}

// Done is closed once Run has exited and the final flush completed.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

func (b *Batcher) flush(ctx context.Context) {
	batch := b.buffer
	backoff := flushBackoff

	for attempt := 1; attempt <= flushAttempts; attempt++ {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		err := b.log.AppendBatch(flushCtx, batch)
		cancel()

		if err == nil {
			b.buffer = b.buffer[:0]
			metrics.BatchFlushesTotal.WithLabelValues("ok").Inc()
			metrics.BatchBufferedRecords.Set(0)
			return
		}

		slog.Warn("Durable-log flush failed", "attempt", attempt, "records", len(batch), "error", err)
		metrics.BatchFlushesTotal.WithLabelValues("error").Inc()

		if attempt == flushAttempts || ctx.Err() != nil {
			break
		}
		timer := b.clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
		}
		timer.Stop()
		backoff *= 2
	}
	// Keep the batch buffered; the next tick or size trigger retries it.
}

func (b *Batcher) drainIntake() {
	for {
		select {
		case rec := <-b.in:
			b.buffer = append(b.buffer, rec)
		default:
			return
		}
	}
}
