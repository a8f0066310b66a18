package resolver

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestTryFireRespectsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	table := newCooldownTable(clock)

	assert.True(t, table.tryFire("r1", time.Minute))
	assert.False(t, table.tryFire("r1", time.Minute))

	clock.Advance(59 * time.Second)
	assert.False(t, table.tryFire("r1", time.Minute))

	clock.Advance(1 * time.Second)
	assert.True(t, table.tryFire("r1", time.Minute))
}

func TestZeroCooldownAlwaysFires(t *testing.T) {
	table := newCooldownTable(clockwork.NewFakeClock())

	assert.True(t, table.tryFire("r1", 0))
	assert.True(t, table.tryFire("r1", 0))
}

func TestRulesCoolDownIndependently(t *testing.T) {
	clock := clockwork.NewFakeClock()
	table := newCooldownTable(clock)

	assert.True(t, table.tryFire("r1", time.Minute))
	assert.True(t, table.tryFire("r2", time.Minute))
	assert.False(t, table.tryFire("r1", time.Minute))
}

func TestResetClearsFirings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	table := newCooldownTable(clock)

	assert.True(t, table.tryFire("r1", time.Minute))
	table.reset()
	assert.True(t, table.tryFire("r1", time.Minute))
}
