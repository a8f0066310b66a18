package resolver

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// cooldownTable tracks the last firing time per rule. Scope is global per
// rule, not per triggering user. One table per session; reset clears it.
type cooldownTable struct {
	clock     clockwork.Clock
	lastFired map[string]time.Time
}

func newCooldownTable(clock clockwork.Clock) *cooldownTable {
	return &cooldownTable{
		clock:     clock,
		lastFired: make(map[string]time.Time),
	}
}

// tryFire reports whether the rule may fire now and, if so, records the
// firing. A zero cooldown always fires.
func (t *cooldownTable) tryFire(ruleID string, cooldown time.Duration) bool {
	now := t.clock.Now()
	if cooldown > 0 {
		if last, ok := t.lastFired[ruleID]; ok && now.Sub(last) < cooldown {
			return false
		}
	}
	t.lastFired[ruleID] = now
	return true
}

func (t *cooldownTable) reset() {
	t.lastFired = make(map[string]time.Time)
}
