package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompositeKind selects the actuator activation pattern for a command.
type CompositeKind string

const (
	CompositeSingle       CompositeKind = "single"
	CompositeSimultaneous CompositeKind = "simultaneous"
	CompositeSequential   CompositeKind = "sequential"
	CompositeRandom       CompositeKind = "random"
)

// ResolvedCommand is the unit of work produced by the resolver and consumed
// exactly once by the dispatcher. A command only exists if its rule's
// cooldown had elapsed at resolution time.
type ResolvedCommand struct {
	ID        uuid.UUID
	RuleID    string
	Pins      []int
	Kind      CompositeKind
	Duration  time.Duration
	StepDelay time.Duration

	// Random composite parameters. RepeatCount defaults to 1, CycleCount to 0.
	MaxPins     int
	RepeatCount int
	CycleCount  int

	Origin     EventRef
	ResolvedAt time.Time
}
