package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ACCOUNT_ID", "acct-1")
	t.Setenv("UPSTREAM_URL", "ws://localhost:9000/events")
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB0")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 9600, cfg.SerialBaud)
	assert.Equal(t, 5*time.Minute, cfg.ContinuationTimeout)
	assert.Equal(t, 64, cfg.ActuatorQueueSize)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchInterval)
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, cfg.ActuatorPins)
}

func TestLoadRequiredFields(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "ACCOUNT_ID", "UPSTREAM_URL", "SERIAL_PORT"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONTINUATION_TIMEOUT", "90s")
	t.Setenv("ACTUATOR_PINS", "2, 3, 4")
	t.Setenv("BATCH_SIZE", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.ContinuationTimeout)
	assert.Equal(t, []int{2, 3, 4}, cfg.ActuatorPins)
	assert.Equal(t, 10, cfg.BatchSize)
}

func TestParsePins(t *testing.T) {
	pins, err := parsePins("2,3,11")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 11}, pins)

	_, err = parsePins("2,x")
	assert.Error(t, err)

	_, err = parsePins("2,3,2")
	assert.Error(t, err)

	_, err = parsePins(" , ")
	assert.Error(t, err)
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRulesSortsBuckets(t *testing.T) {
	path := writeRules(t, `{
		"gift_rules": [
			{"id": "big", "min_value": 1000, "action": {"pins": [5], "duration_ms": 800}},
			{"id": "small", "min_value": 1, "action": {"pins": [2], "duration_ms": 500}}
		],
		"like_rules": [
			{"id": "l500", "threshold": 500, "action": {"pins": [8], "duration_ms": 900}},
			{"id": "l100", "threshold": 100, "auto_increment": 100, "action": {"pins": [7], "duration_ms": 400}}
		]
	}`)

	rules, err := LoadRules(path)
	require.NoError(t, err)

	require.Len(t, rules.GiftRules, 2)
	assert.Equal(t, "small", rules.GiftRules[0].ID)
	assert.Equal(t, "big", rules.GiftRules[1].ID)

	require.Len(t, rules.LikeRules, 2)
	assert.Equal(t, "l100", rules.LikeRules[0].ID)
	assert.Equal(t, int64(100), rules.LikeRules[0].AutoIncrement)
}

func TestLoadRulesDefaultsMatchType(t *testing.T) {
	path := writeRules(t, `{
		"keyword_rules": [
			{"id": "kw", "pattern": "fire", "action": {"pins": [6], "duration_ms": 300}}
		]
	}`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules.KeywordRules, 1)
	assert.Equal(t, domain.MatchContains, rules.KeywordRules[0].MatchType)
}

func TestLoadRulesRejectsBadInput(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadRules(writeRules(t, `{not json`))
	assert.Error(t, err)

	_, err = LoadRules(writeRules(t, `{"keyword_rules": [{"id": "kw", "pattern": ""}]}`))
	assert.Error(t, err)

	_, err = LoadRules(writeRules(t, `{"keyword_rules": [{"id": "kw", "pattern": "x", "match_type": "regex"}]}`))
	assert.Error(t, err)
}

func TestMillisecondsDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, domain.Milliseconds(1500).Duration())
}
