package domain

import "time"

// MatchType controls how a keyword rule compares against comment text.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
)

// ActionSpec describes the actuator activation a rule requests.
type ActionSpec struct {
	Pins      []int         `json:"pins"`
	Composite CompositeKind `json:"composite,omitempty"`
	Duration  Milliseconds  `json:"duration_ms"`
	StepDelay Milliseconds  `json:"step_delay_ms,omitempty"`

	// Random composite parameters; ignored for other kinds.
	MaxPins     int `json:"max_pins,omitempty"`
	RepeatCount int `json:"repeat_count,omitempty"`
	CycleCount  int `json:"cycle_count,omitempty"`
}

// GiftValueRule maps a gift value bucket to actuator targets. The rule with
// the largest MinValue not exceeding the gift's total value wins.
type GiftValueRule struct {
	ID       string     `json:"id"`
	MinValue int64      `json:"min_value"`
	Action   ActionSpec `json:"action"`
}

// KeywordRule fires on comments. Matching is case-insensitive; exact rules
// are evaluated before contains rules.
type KeywordRule struct {
	ID        string       `json:"id"`
	Pattern   string       `json:"pattern"`
	MatchType MatchType    `json:"match_type"`
	Priority  int          `json:"priority"`
	Cooldown  Milliseconds `json:"cooldown_ms"`
	Action    ActionSpec   `json:"action"`
}

// LikeThresholdRule fires each time the session like counter crosses its
// next threshold. Progressive rules advance by AutoIncrement after firing;
// rules without AutoIncrement fire once.
type LikeThresholdRule struct {
	ID            string     `json:"id"`
	Threshold     int64      `json:"threshold"`
	AutoIncrement int64      `json:"auto_increment,omitempty"`
	Action        ActionSpec `json:"action"`
}

// RuleSet is the full action configuration for a session. Loaded once,
// immutable while the session runs.
type RuleSet struct {
	GiftRules    []GiftValueRule     `json:"gift_rules"`
	KeywordRules []KeywordRule       `json:"keyword_rules"`
	LikeRules    []LikeThresholdRule `json:"like_rules"`
}

// Milliseconds is a duration serialized as an integer millisecond count in
// rule files.
type Milliseconds int64

// Duration converts to a time.Duration.
func (m Milliseconds) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}
