// Package config loads command settings from flags, AMM_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Clock modes accepted by the replay command.
const (
	ClockManual = "manual"
	ClockBlock  = "block"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In           string
	Results      string
	Errors       string
	Events       string
	Snapshot     string
	SnapshotDB   bool
	PGDSN        string
	Engine       string
	BatchSize    uint64
	Resume       bool
	ClockMode    string
	ClockStart   uint64
	RPCURL       string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"results":       "./data/results.jsonl",
		"errors":        "./data/errors.jsonl",
		"events":        "./data/events.jsonl",
		"snapshot":      "./data/snapshot.json",
		"engine":        "default",
		"batch-size":    uint64(500),
		"clock":         ClockManual,
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		In:           v.GetString("in"),
		Results:      v.GetString("results"),
		Errors:       v.GetString("errors"),
		Events:       v.GetString("events"),
		Snapshot:     v.GetString("snapshot"),
		SnapshotDB:   v.GetBool("snapshot-db"),
		PGDSN:        v.GetString("pg-dsn"),
		Engine:       v.GetString("engine"),
		BatchSize:    v.GetUint64("batch-size"),
		Resume:       v.GetBool("resume"),
		ClockMode:    strings.ToLower(strings.TrimSpace(v.GetString("clock"))),
		ClockStart:   v.GetUint64("clock-start"),
		RPCURL:       v.GetString("rpc"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c ReplayConfig) Validate() error {
	if c.In == "" {
		return fmt.Errorf("input path is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	switch c.ClockMode {
	case ClockManual:
	case ClockBlock:
		if c.RPCURL == "" {
			return fmt.Errorf("rpc url is required for block clock")
		}
	default:
		return fmt.Errorf("unknown clock mode %q", c.ClockMode)
	}
	if c.SnapshotDB && c.PGDSN == "" {
		return fmt.Errorf("pg dsn is required for snapshot-db")
	}
	return nil
}

// newViper builds a viper instance bound to flags, AMM_* env vars and the
// config file. A missing default config file is not an error.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
