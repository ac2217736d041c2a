package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ammEngine/internal/amm"
	"ammEngine/internal/clock"
	"ammEngine/internal/config"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

type poolView struct {
	model.Pool
	PriceYPerX string `json:"price_y_per_x"`
	PriceXPerY string `json:"price_x_per_y"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
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

	var snaps storage.SnapshotStore = &storage.FileSnapshotStore{Path: cfg.Snapshot}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Engine)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		snaps = &storage.DBSnapshotStore{Store: store, Name: cfg.Engine}
	}

	snap, ok, err := snaps.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("no snapshot found")
	}

	// Restoring validates the snapshot before anything is printed.
	engine, err := amm.Restore(snap, clock.NewManual(snap.Clock), amm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, pool := range engine.ListPools() {
		yPerX, xPerY := amm.SpotPrice(pool)
		if err := enc.Encode(poolView{Pool: pool, PriceYPerX: yPerX, PriceXPerY: xPerY}); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "pools=%d positions=%d clock=%d next_seq=%d applied_ops=%d\n",
		len(snap.Pools), len(snap.Positions), snap.Clock, snap.NextSeq, snap.AppliedOps)
	return err
}
