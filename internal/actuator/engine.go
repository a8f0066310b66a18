package actuator

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/jonboulle/clockwork"
)

const heartbeatInterval = 5 * time.Second

// StatusSink receives device state for status display. The engine is the
// single writer of device state.
type StatusSink interface {
	SetDeviceStats(domain.DeviceStats)
}

// Engine is the dedicated actuator consumer. It drains the dispatcher's
// command queue, expands composite commands into per-step pin activations,
// and tracks device liveness via the PING/PONG heartbeat. The run loop is
// select-driven over {replies, heartbeat tick, emergency stop, commands,
// cancellation}.
type Engine struct {
	transport Transport
	clock     clockwork.Clock
	commands  <-chan domain.ResolvedCommand
	sink      StatusSink
	rng       *rand.Rand

	pins      map[int]struct{}
	busyUntil map[int]time.Time

	emergency     chan struct{}
	stopRequested atomic.Bool

	stats domain.DeviceStats
}

func NewEngine(transport Transport, commands <-chan domain.ResolvedCommand, sink StatusSink, configuredPins []int, clock clockwork.Clock) *Engine {
	pins := make(map[int]struct{}, len(configuredPins))
	for _, pin := range configuredPins {
		pins[pin] = struct{}{}
	}
	return &Engine{
		transport: transport,
		clock:     clock,
		commands:  commands,
		sink:      sink,
		rng:       rand.New(rand.NewSource(clock.Now().UnixNano())),
		pins:      pins,
		busyUntil: make(map[int]time.Time),
		emergency: make(chan struct{}, 1),
		stats:     domain.DeviceStats{Status: domain.DeviceDisconnected},
	}
}

// EmergencyStop preempts any in-flight composite execution at its next step
// boundary and forces every pin inactive. Safe to call from any goroutine.
func (e *Engine) EmergencyStop() {
	e.stopRequested.Store(true)
	select {
	case e.emergency <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	heartbeat := e.clock.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	e.pushStats()
	e.send(PingCommand{})

	lines := e.transport.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				e.markDisconnected("transport closed")
				lines = nil
				continue
			}
			e.handleReply(line)
		case <-heartbeat.Chan():
			e.heartbeat()
		case <-e.emergency:
			e.handleEmergencyStop()
		case cmd := <-e.commands:
			metrics.ActuatorQueueDepth.Set(float64(len(e.commands)))
			e.execute(ctx, cmd)
		}
	}
}

func (e *Engine) heartbeat() {
	e.send(PingCommand{})
	if e.stats.Status == domain.DeviceConnected &&
		e.clock.Now().Sub(e.stats.LastPongAt) > HeartbeatTimeout {
		metrics.HeartbeatTimeoutsTotal.Inc()
		e.markDisconnected("heartbeat timeout")
	}
}

func (e *Engine) handleReply(line string) {
	reply, err := ParseReply(line)
	if err != nil {
		slog.Warn("Unparseable device reply", "line", line, "error", err)
		return
	}

	switch r := reply.(type) {
	case PongReply:
		e.stats.LastPongAt = e.clock.Now()
		e.stats.Version = r.Version
		e.stats.UptimeMs = r.UptimeMs
		if e.stats.Status != domain.DeviceConnected {
			e.stats.Status = domain.DeviceConnected
			metrics.DeviceConnected.Set(1)
			slog.Info("Device connected", "version", r.Version)
		}
	case StatusReply:
		e.stats.Version = r.Version
		e.stats.SuccessRate = r.SuccessRate
	case OKReply:
		e.stats.CommandsOK++
	case ErrorReply:
		e.stats.CommandsFail++
		slog.Warn("Device error reply", "reason", r.Reason, "detail", r.Detail)
	}

	e.recomputeSuccessRate()
	e.pushStats()
}

// execute runs one resolved command through the composite state machine.
// Failures are local: a rejected command never affects others in flight.
func (e *Engine) execute(ctx context.Context, cmd domain.ResolvedCommand) {
	if e.stats.Status != domain.DeviceConnected {
		slog.Warn("Device disconnected, suppressing command",
			"rule_id", cmd.RuleID, "error", domain.ErrDeviceDisconnected)
		metrics.DeviceCommandsTotal.WithLabelValues("suppressed").Inc()
		return
	}

	pins := cmd.Pins
	if len(pins) > MaxPinsPerCommand {
		pins = pins[:MaxPinsPerCommand]
	}
	for _, pin := range pins {
		if _, ok := e.pins[pin]; !ok {
			slog.Warn("Command references unconfigured pin",
				"rule_id", cmd.RuleID, "pin", pin, "error", domain.ErrUnknownPin)
			metrics.DeviceCommandsTotal.WithLabelValues("rejected").Inc()
			return
		}
	}
	if len(pins) == 0 {
		return
	}

	now := e.clock.Now()
	for _, pin := range pins {
		if until, busy := e.busyUntil[pin]; busy && now.Before(until) {
			slog.Warn("Pin still within duty-cycle window, dropping command",
				"rule_id", cmd.RuleID, "pin", pin)
			metrics.DeviceCommandsTotal.WithLabelValues("duty_dropped").Inc()
			return
		}
	}

	duration := ClampDuration(cmd.Duration)
	stepDelay := ClampDelay(cmd.StepDelay)

	switch cmd.Kind {
	case domain.CompositeSingle, domain.CompositeSimultaneous:
		e.activate(pins, duration)
	case domain.CompositeSequential:
		e.runSequential(ctx, pins, duration, stepDelay)
	case domain.CompositeRandom:
		e.runRandom(ctx, cmd, pins, duration)
	default:
		slog.Warn("Unknown composite kind", "kind", cmd.Kind, "rule_id", cmd.RuleID)
	}
}

// runSequential fires each pin in turn, cancellable between steps.
func (e *Engine) runSequential(ctx context.Context, pins []int, duration, stepDelay time.Duration) {
	for i, pin := range pins {
		if e.stopRequested.Load() || ctx.Err() != nil {
			return
		}
		e.activate([]int{pin}, duration)
		if !e.wait(ctx, duration) {
			return
		}
		if i < len(pins)-1 && !e.wait(ctx, stepDelay) {
			return
		}
	}
}

// runRandom fires random pin subsets for cycleCount+1 cycles of repeatCount
// repeats, with ±25% duration jitter and small randomized gaps, cancellable
// between repeats.
func (e *Engine) runRandom(ctx context.Context, cmd domain.ResolvedCommand, pool []int, duration time.Duration) {
	maxPins := cmd.MaxPins
	if maxPins < 1 || maxPins > len(pool) {
		maxPins = len(pool)
	}
	repeats := cmd.RepeatCount
	if repeats < 1 {
		repeats = 1
	}
	cycles := cmd.CycleCount + 1

	for cycle := 0; cycle < cycles; cycle++ {
		for repeat := 0; repeat < repeats; repeat++ {
			if e.stopRequested.Load() || ctx.Err() != nil {
				return
			}
			subset := e.randomSubset(pool, maxPins)
			jittered := ClampDuration(jitter(e.rng, duration))
			e.activate(subset, jittered)
			if !e.wait(ctx, jittered) {
				return
			}
			if !e.wait(ctx, e.randomDelay(50, 250)) {
				return
			}
		}
		if cycle < cycles-1 && !e.wait(ctx, e.randomDelay(100, 400)) {
			return
		}
	}
}

// activate sends one simultaneous activation and records the duty window.
func (e *Engine) activate(pins []int, duration time.Duration) {
	if err := e.send(SimultaneousCommand{Pins: pins, Duration: duration}); err != nil {
		return
	}
	until := e.clock.Now().Add(duration)
	for _, pin := range pins {
		e.busyUntil[pin] = until
	}
}

func (e *Engine) send(cmd Command) error {
	err := e.transport.Send(cmd.Encode())
	e.stats.CommandsSent++
	e.stats.LastCommandAt = e.clock.Now()
	if err != nil {
		e.stats.CommandsFail++
		slog.Error("Device write failed", "error", err)
		metrics.DeviceCommandsTotal.WithLabelValues("write_error").Inc()
	} else {
		metrics.DeviceCommandsTotal.WithLabelValues("sent").Inc()
	}
	e.recomputeSuccessRate()
	e.pushStats()
	return err
}

// wait sleeps for d, aborting early on emergency stop or cancellation.
// Returns false if execution must stop.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !e.stopRequested.Load() && ctx.Err() == nil
	}
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return !e.stopRequested.Load() && ctx.Err() == nil
	case <-e.emergency:
		e.handleEmergencyStop()
		return false
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) handleEmergencyStop() {
	metrics.EmergencyStopsTotal.Inc()
	_ = e.send(StopCommand{})
	for pin := range e.busyUntil {
		delete(e.busyUntil, pin)
	}
	e.stopRequested.Store(false)
	slog.Warn("Emergency stop issued, all pins forced inactive")
}

func (e *Engine) markDisconnected(reason string) {
	if e.stats.Status == domain.DeviceDisconnected {
		return
	}
	e.stats.Status = domain.DeviceDisconnected
	metrics.DeviceConnected.Set(0)
	slog.Warn("Device disconnected", "reason", reason, "error", domain.ErrDeviceTimeout)
	e.pushStats()
}

func (e *Engine) randomSubset(pool []int, maxPins int) []int {
	size := 1 + e.rng.Intn(maxPins)
	perm := e.rng.Perm(len(pool))
	subset := make([]int, size)
	for i := 0; i < size; i++ {
		subset[i] = pool[perm[i]]
	}
	return subset
}

func (e *Engine) randomDelay(minMs, maxMs int) time.Duration {
	return ClampDelay(time.Duration(minMs+e.rng.Intn(maxMs-minMs)) * time.Millisecond)
}

// jitter scales d by a uniform factor in [0.75, 1.25).
func jitter(rng *rand.Rand, d time.Duration) time.Duration {
	factor := 0.75 + rng.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

func (e *Engine) recomputeSuccessRate() {
	if e.stats.CommandsSent > 0 {
		e.stats.SuccessRate = float64(e.stats.CommandsOK) / float64(e.stats.CommandsSent) * 100
	}
}

func (e *Engine) pushStats() {
	e.sink.SetDeviceStats(e.stats)
}
