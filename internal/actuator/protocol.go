// Package actuator encodes commands for the physical device, runs the
// composite-command state machine and tracks device liveness.
package actuator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

// Wire protocol constraints.
const (
	MinDuration       = 10 * time.Millisecond
	MaxDuration       = 10000 * time.Millisecond
	MaxDelay          = 2000 * time.Millisecond
	MaxPinsPerCommand = 11
	HeartbeatTimeout  = 15000 * time.Millisecond
)

// Command is one newline-delimited instruction for the device. Each wire
// form is its own variant so fields are statically known instead of being
// re-derived from positional splits.
type Command interface {
	Encode() string
}

// TriggerCommand is the legacy structured form. The device treats it as
// Simultaneous.
type TriggerCommand struct {
	Pins     []int
	Duration time.Duration
}

// SimultaneousCommand activates all pins together for Duration.
type SimultaneousCommand struct {
	Pins     []int
	Duration time.Duration
}

// SequentialCommand activates each pin in turn for Duration, waiting
// StepDelay between pins.
type SequentialCommand struct {
	Pins      []int
	Duration  time.Duration
	StepDelay time.Duration
}

// RandomCommand activates random pin subsets over repeat/cycle rounds.
type RandomCommand struct {
	Pins        []int
	Duration    time.Duration
	MaxPins     int
	RepeatCount int
	CycleCount  int
}

// PingCommand is the liveness probe; the device answers PONG.
type PingCommand struct{}

// StatusCommand requests device statistics.
type StatusCommand struct{}

// StopCommand is the emergency stop; it preempts all in-flight composites.
type StopCommand struct{}

type legacyTrigger struct {
	Cmd      string `json:"cmd"`
	Pins     []int  `json:"pins"`
	Duration int64  `json:"duration"`
}

func (c TriggerCommand) Encode() string {
	payload, _ := json.Marshal(legacyTrigger{
		Cmd:      "trigger",
		Pins:     c.Pins,
		Duration: c.Duration.Milliseconds(),
	})
	return string(payload)
}

func (c SimultaneousCommand) Encode() string {
	return fmt.Sprintf("SIMULTANEOUS_PINS:%s:%d", joinPins(c.Pins), c.Duration.Milliseconds())
}

func (c SequentialCommand) Encode() string {
	return fmt.Sprintf("SEQUENTIAL_PINS:%s:%d:%d",
		joinPins(c.Pins), c.Duration.Milliseconds(), c.StepDelay.Milliseconds())
}

func (c RandomCommand) Encode() string {
	return fmt.Sprintf("RANDOM_PINS:%s:%d:%d:%d:%d",
		joinPins(c.Pins), c.Duration.Milliseconds(), c.MaxPins, c.RepeatCount, c.CycleCount)
}

func (PingCommand) Encode() string   { return "PING" }
func (StatusCommand) Encode() string { return "STATUS" }
func (StopCommand) Encode() string   { return "ALL:STOP" }

// ParseCommand decodes one wire line into its command variant. The legacy
// JSON trigger form is accepted alongside the text forms.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, &domain.ProtocolError{Reason: "EMPTY_COMMAND"}
	}

	if strings.HasPrefix(line, "{") {
		var legacy legacyTrigger
		if err := json.Unmarshal([]byte(line), &legacy); err != nil {
			return nil, &domain.ProtocolError{Reason: "BAD_JSON", Detail: err.Error()}
		}
		if legacy.Cmd != "trigger" {
			return nil, &domain.ProtocolError{Reason: "UNKNOWN_COMMAND", Detail: legacy.Cmd}
		}
		return TriggerCommand{
			Pins:     legacy.Pins,
			Duration: time.Duration(legacy.Duration) * time.Millisecond,
		}, nil
	}

	switch line {
	case "PING":
		return PingCommand{}, nil
	case "STATUS":
		return StatusCommand{}, nil
	case "ALL:STOP":
		return StopCommand{}, nil
	}

	name, rest, found := strings.Cut(line, ":")
	if !found {
		return nil, &domain.ProtocolError{Reason: "UNKNOWN_COMMAND", Detail: line}
	}

	switch name {
	case "SIMULTANEOUS_PINS":
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return nil, &domain.ProtocolError{Reason: "BAD_FORMAT", Detail: line}
		}
		pins, err := parsePins(parts[0])
		if err != nil {
			return nil, err
		}
		duration, err := parseMillis(parts[1])
		if err != nil {
			return nil, err
		}
		return SimultaneousCommand{Pins: pins, Duration: duration}, nil

	case "SEQUENTIAL_PINS":
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return nil, &domain.ProtocolError{Reason: "BAD_FORMAT", Detail: line}
		}
		pins, err := parsePins(parts[0])
		if err != nil {
			return nil, err
		}
		duration, err := parseMillis(parts[1])
		if err != nil {
			return nil, err
		}
		stepDelay, err := parseMillis(parts[2])
		if err != nil {
			return nil, err
		}
		return SequentialCommand{Pins: pins, Duration: duration, StepDelay: stepDelay}, nil

	case "RANDOM_PINS":
		parts := strings.Split(rest, ":")
		if len(parts) != 5 {
			return nil, &domain.ProtocolError{Reason: "BAD_FORMAT", Detail: line}
		}
		pins, err := parsePins(parts[0])
		if err != nil {
			return nil, err
		}
		duration, err := parseMillis(parts[1])
		if err != nil {
			return nil, err
		}
		maxPins, err := parseCount(parts[2])
		if err != nil {
			return nil, err
		}
		repeatCount, err := parseCount(parts[3])
		if err != nil {
			return nil, err
		}
		cycleCount, err := parseCount(parts[4])
		if err != nil {
			return nil, err
		}
		if repeatCount < 1 {
			repeatCount = 1
		}
		if cycleCount < 0 {
			cycleCount = 0
		}
		return RandomCommand{
			Pins:        pins,
			Duration:    duration,
			MaxPins:     maxPins,
			RepeatCount: repeatCount,
			CycleCount:  cycleCount,
		}, nil
	}

	return nil, &domain.ProtocolError{Reason: "UNKNOWN_COMMAND", Detail: name}
}

// --- Replies ---

// Reply is one line received from the device.
type Reply interface{ reply() }

type PongReply struct {
	Version  string
	UptimeMs int64
}

type StatusReply struct {
	Version     string
	Total       int64
	OK          int64
	SuccessRate float64
	LastCmdTs   int64
}

type OKReply struct {
	Detail string
}

type ErrorReply struct {
	Reason string
	Detail string
}

func (PongReply) reply()   {}
func (StatusReply) reply() {}
func (OKReply) reply()     {}
func (ErrorReply) reply()  {}

// ParseReply decodes one device reply line.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, "PONG:"):
		parts := strings.Split(line, ":")
		if len(parts) != 3 {
			return nil, &domain.ProtocolError{Reason: "BAD_REPLY", Detail: line}
		}
		uptime, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, &domain.ProtocolError{Reason: "BAD_REPLY", Detail: line}
		}
		return PongReply{Version: parts[1], UptimeMs: uptime}, nil

	case strings.HasPrefix(line, "STATUS:"):
		parts := strings.Split(line, ":")
		if len(parts) != 6 {
			return nil, &domain.ProtocolError{Reason: "BAD_REPLY", Detail: line}
		}
		total, err1 := strconv.ParseInt(parts[2], 10, 64)
		ok, err2 := strconv.ParseInt(parts[3], 10, 64)
		rate, err3 := strconv.ParseFloat(parts[4], 64)
		lastCmd, err4 := strconv.ParseInt(parts[5], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, &domain.ProtocolError{Reason: "BAD_REPLY", Detail: line}
		}
		return StatusReply{Version: parts[1], Total: total, OK: ok, SuccessRate: rate, LastCmdTs: lastCmd}, nil

	case strings.HasPrefix(line, "OK:"):
		return OKReply{Detail: strings.TrimPrefix(line, "OK:")}, nil
	case line == "OK":
		return OKReply{}, nil

	case strings.HasPrefix(line, "ERROR:"):
		rest := strings.TrimPrefix(line, "ERROR:")
		reason, detail, _ := strings.Cut(rest, ":")
		return ErrorReply{Reason: reason, Detail: detail}, nil
	}

	return nil, &domain.ProtocolError{Reason: "BAD_REPLY", Detail: line}
}

// ClampDuration bounds an activation duration to the device limits.
func ClampDuration(d time.Duration) time.Duration {
	if d < MinDuration {
		return MinDuration
	}
	if d > MaxDuration {
		return MaxDuration
	}
	return d
}

// ClampDelay bounds an inter-step delay.
func ClampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

func joinPins(pins []int) string {
	parts := make([]string, len(pins))
	for i, pin := range pins {
		parts[i] = strconv.Itoa(pin)
	}
	return strings.Join(parts, ",")
}

func parsePins(s string) ([]int, error) {
	if s == "" {
		return nil, &domain.ProtocolError{Reason: "NO_PINS"}
	}
	parts := strings.Split(s, ",")
	if len(parts) > MaxPinsPerCommand {
		return nil, &domain.ProtocolError{Reason: "TOO_MANY_PINS", Detail: strconv.Itoa(len(parts))}
	}
	pins := make([]int, len(parts))
	for i, part := range parts {
		pin, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, &domain.ProtocolError{Reason: "BAD_PIN", Detail: part}
		}
		pins[i] = pin
	}
	return pins, nil
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &domain.ProtocolError{Reason: "BAD_DURATION", Detail: s}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &domain.ProtocolError{Reason: "BAD_COUNT", Detail: s}
	}
	return n, nil
}
