package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Quote kinds.
const (
	QuoteOut   = "out"
	QuoteIn    = "in"
	QuoteRatio = "ratio"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Kind       string
	Amount     uint64
	ReserveIn  uint64
	ReserveOut uint64
	FeeBps     uint32
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"kind":      QuoteOut,
		"fee-bps":   uint32(30),
		"log-level": "warn",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Kind:       strings.ToLower(strings.TrimSpace(v.GetString("kind"))),
		Amount:     v.GetUint64("amount"),
		ReserveIn:  v.GetUint64("reserve-in"),
		ReserveOut: v.GetUint64("reserve-out"),
		FeeBps:     v.GetUint32("fee-bps"),
		LogLevel:   v.GetString("log-level"),
	}
	switch cfg.Kind {
	case QuoteOut, QuoteIn, QuoteRatio:
	default:
		return cfg, fmt.Errorf("unknown quote kind %q", cfg.Kind)
	}
	return cfg, nil
}
