package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input         string
	Window        time.Duration
	PGDSN         string
	Engine        string
	BatchSize     int
	StateFile     string
	StateDB       bool
	RecomputeFrom uint64
	LogLevel      string
}

// WindowSeconds returns the window length in whole seconds.
func (c AggregateConfig) WindowSeconds() uint64 {
	return uint64(c.Window / time.Second)
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":         "./data/events.jsonl",
		"window":     5 * time.Minute,
		"engine":     "default",
		"batch-size": 1000,
		"log-level":  "info",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	recompute, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		Window:        v.GetDuration("window"),
		PGDSN:         v.GetString("pg-dsn"),
		Engine:        v.GetString("engine"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		StateDB:       v.GetBool("state-db"),
		RecomputeFrom: recompute,
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if cfg.WindowSeconds() == 0 {
		return cfg, fmt.Errorf("window must be at least one second")
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
