package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	AccountID   string `env:"ACCOUNT_ID"`
	UpstreamURL string `env:"UPSTREAM_URL"`
	RulesPath   string `env:"RULES_PATH" default:"config/rules.json"`

	SerialPort string `env:"SERIAL_PORT"`
	SerialBaud int    `env:"SERIAL_BAUD" default:"9600"`
	PinList    string `env:"ACTUATOR_PINS" default:"2,3,4,5,6,7,8,9,10,11,12"`

	ContinuationTimeout time.Duration `env:"CONTINUATION_TIMEOUT" default:"5m"`
	ActuatorQueueSize   int           `env:"ACTUATOR_QUEUE_SIZE" default:"64"`
	BatchSize           int           `env:"BATCH_SIZE" default:"50"`
	BatchInterval       time.Duration `env:"BATCH_INTERVAL" default:"5s"`

	// Parsed from PinList.
	ActuatorPins []int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	pins, err := parsePins(cfg.PinList)
	if err != nil {
		return nil, fmt.Errorf("ACTUATOR_PINS: %w", err)
	}
	cfg.ActuatorPins = pins

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.AccountID == "" {
		return fmt.Errorf("ACCOUNT_ID is required")
	}
	if cfg.UpstreamURL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if cfg.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if cfg.ActuatorQueueSize <= 0 {
		return fmt.Errorf("ACTUATOR_QUEUE_SIZE must be positive")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	return nil
}

// parsePins parses a comma-separated pin list, e.g. "2,3,4".
func parsePins(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	pins := make([]int, 0, len(parts))
	seen := make(map[int]bool)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pin, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid pin %q", part)
		}
		if seen[pin] {
			return nil, fmt.Errorf("duplicate pin %d", pin)
		}
		seen[pin] = true
		pins = append(pins, pin)
	}
	if len(pins) == 0 {
		return nil, fmt.Errorf("no pins configured")
	}
	return pins, nil
}

// LoadRules reads the action rule set from a JSON file. Gift rules are sorted
// by ascending min_value so the resolver can bucket by binary search; like
// rules by ascending threshold.
func LoadRules(path string) (*domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules domain.RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, r := range rules.KeywordRules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("keyword rule %q has empty pattern", r.ID)
		}
		switch r.MatchType {
		case domain.MatchExact, domain.MatchContains:
		case "":
			rules.KeywordRules[i].MatchType = domain.MatchContains
		default:
			return nil, fmt.Errorf("keyword rule %q has unknown match type %q", r.ID, r.MatchType)
		}
	}

	sort.SliceStable(rules.GiftRules, func(i, j int) bool {
		return rules.GiftRules[i].MinValue < rules.GiftRules[j].MinValue
	})
	sort.SliceStable(rules.LikeRules, func(i, j int) bool {
		return rules.LikeRules[i].Threshold < rules.LikeRules[j].Threshold
	})

	return &rules, nil
}
