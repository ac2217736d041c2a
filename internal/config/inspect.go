package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	Snapshot string
	PGDSN    string
	Engine   string
	LogLevel string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
// A DSN takes precedence over the snapshot file.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"snapshot":  "./data/snapshot.json",
		"engine":    "default",
		"log-level": "warn",
	})
	if err != nil {
		return InspectConfig{}, err
	}

	cfg := InspectConfig{
		Snapshot: v.GetString("snapshot"),
		PGDSN:    v.GetString("pg-dsn"),
		Engine:   v.GetString("engine"),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.Snapshot == "" && cfg.PGDSN == "" {
		return cfg, fmt.Errorf("snapshot path or pg dsn is required")
	}
	return cfg, nil
}
