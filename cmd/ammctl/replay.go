package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/chain"
	"ammEngine/internal/clock"
	"ammEngine/internal/config"
	"ammEngine/internal/replay"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	deps := replay.Deps{Logger: logger}

	switch cfg.ClockMode {
	case config.ClockBlock:
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		chainID, err := chainClient.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		logger.Info("block clock", zap.String("chain_id", chainID.String()))

		deps.Clock = clock.NewBlock(chainClient, clock.BlockOptions{
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
			Logger:     logger,
		})
	default:
		manual := clock.NewManual(cfg.ClockStart)
		deps.Clock = manual
		deps.Manual = manual
	}

	var events storage.MultiStorage
	if cfg.Events != "" {
		events = append(events, storage.NewJsonlStorage(cfg.Events))
	}
	deps.Snapshots = &storage.FileSnapshotStore{Path: cfg.Snapshot}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Engine)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		events = append(events, store)
		if cfg.SnapshotDB {
			deps.Snapshots = &storage.DBSnapshotStore{Store: store, Name: cfg.Engine}
		}
	}
	if len(events) == 0 {
		return fmt.Errorf("events path or pg dsn is required")
	}
	deps.Events = events

	results, err := storage.NewJSONLWriter(cfg.Results, cfg.Resume)
	if err != nil {
		return err
	}
	defer results.Close()
	deps.Results = results

	errs, err := storage.NewJSONLWriter(cfg.Errors, cfg.Resume)
	if err != nil {
		return err
	}
	defer errs.Close()
	deps.Errors = errs

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("clock", cfg.ClockMode),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("resume", cfg.Resume),
		zap.String("events", cfg.Events),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("snapshot_db", cfg.SnapshotDB),
	)

	runner := replay.NewRunner(replay.RunConfig{
		In:        cfg.In,
		BatchSize: cfg.BatchSize,
		Resume:    cfg.Resume,
	}, deps)

	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	for _, pool := range runner.Engine().ListPools() {
		yPerX, xPerY := amm.SpotPrice(pool)
		logger.Info("pool",
			zap.Uint64("id", uint64(pool.ID)),
			zap.String("pair", pool.Key().String()),
			zap.Uint64("reserve_x", pool.ReserveX),
			zap.Uint64("reserve_y", pool.ReserveY),
			zap.String("price_y_per_x", yPerX),
			zap.String("price_x_per_y", xPerY),
		)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "lines=%d applied=%d rejected=%d malformed=%d skipped=%d events=%d\n",
		sum.Lines, sum.Applied, sum.Rejected, sum.Malformed, sum.Skipped, sum.Events)
	return err
}
