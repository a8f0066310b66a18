// Package app is the application layer: it wires the pipeline stages together
// and runs the single ingestion goroutine.
package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/dispatch"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/ingress"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/resolver"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/streak"
)

// staleScanInterval bounds how long an abandoned streak buffer can outlive
// its staleness window.
const staleScanInterval = 5 * time.Second

// Pipeline drives events from the upstream stream through normalization,
// streak aggregation and rule resolution into the dispatcher. Everything here
// runs on one goroutine; the stages it drives are individually safe against
// session lifecycle callers.
type Pipeline struct {
	events     <-chan ingress.RawEvent
	normalizer *ingress.Normalizer
	streaks    *streak.Aggregator
	resolver   *resolver.Resolver
	dispatcher *dispatch.Dispatcher
	clock      clockwork.Clock
}

func NewPipeline(events <-chan ingress.RawEvent, normalizer *ingress.Normalizer, streaks *streak.Aggregator, res *resolver.Resolver, dispatcher *dispatch.Dispatcher, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		events:     events,
		normalizer: normalizer,
		streaks:    streaks,
		resolver:   res,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// Run consumes the event stream until ctx is cancelled or the stream closes.
// Remaining streak buffers are flushed as final on the way out.
func (p *Pipeline) Run(ctx context.Context) {
	staleScan := p.clock.NewTicker(staleScanInterval)
	defer staleScan.Stop()

	for {
		select {
		case raw, ok := <-p.events:
			if !ok {
				p.drainStreaks()
				return
			}
			p.handle(raw)
		case <-staleScan.Chan():
			for _, gift := range p.streaks.FlushStale() {
				p.handleGift(gift)
			}
		case <-ctx.Done():
			p.drainStreaks()
			return
		}
	}
}

func (p *Pipeline) handle(raw ingress.RawEvent) {
	ev, err := p.normalizer.Normalize(raw)
	if err != nil {
		// Normalize counts and logs its own drops.
		return
	}

	if ev.Kind == domain.EventGift {
		if gift := p.streaks.Offer(ev); gift != nil {
			p.handleGift(*gift)
		}
		return
	}

	p.dispatcher.ObserveEvent(ev)
	for _, cmd := range p.resolver.Resolve(ev) {
		p.dispatcher.DispatchCommand(cmd)
	}
}

func (p *Pipeline) handleGift(gift domain.AggregatedGift) {
	p.dispatcher.ObserveGift(gift)
	for _, cmd := range p.resolver.ResolveGift(gift) {
		p.dispatcher.DispatchCommand(cmd)
	}
}

func (p *Pipeline) drainStreaks() {
	for _, gift := range p.streaks.FlushAll() {
		p.handleGift(gift)
	}
}

// StreakDrain flushes pending streak buffers into the dispatcher when a
// session ends, so in-flight streaks still reach the durable log and live
// state instead of being silently discarded.
type StreakDrain struct {
	streaks    *streak.Aggregator
	dispatcher *dispatch.Dispatcher
}

func NewStreakDrain(streaks *streak.Aggregator, dispatcher *dispatch.Dispatcher) *StreakDrain {
	return &StreakDrain{streaks: streaks, dispatcher: dispatcher}
}

func (d *StreakDrain) ResetSession() {
	for _, gift := range d.streaks.FlushAll() {
		d.dispatcher.ObserveGift(gift)
	}
}
