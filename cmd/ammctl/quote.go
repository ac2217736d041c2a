package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/config"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Debug("quote",
		zap.String("kind", cfg.Kind),
		zap.Uint64("amount", cfg.Amount),
		zap.Uint64("reserve_in", cfg.ReserveIn),
		zap.Uint64("reserve_out", cfg.ReserveOut),
		zap.Uint32("fee_bps", cfg.FeeBps),
	)

	var result interface{}
	switch cfg.Kind {
	case config.QuoteOut:
		result, err = amm.Preview(cfg.Amount, cfg.ReserveIn, cfg.ReserveOut, cfg.FeeBps)
	case config.QuoteIn:
		result, err = amm.GetAmountIn(cfg.Amount, cfg.ReserveIn, cfg.ReserveOut, cfg.FeeBps)
	case config.QuoteRatio:
		result, err = amm.QuoteAmount(cfg.Amount, cfg.ReserveIn, cfg.ReserveOut)
	}
	if err != nil {
		logger.Debug("quote rejected", zap.Int("code", amm.CodeOf(err)), zap.Error(err))
		return fmt.Errorf("quote %s (code %d): %w", cfg.Kind, amm.CodeOf(err), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(result)
}
