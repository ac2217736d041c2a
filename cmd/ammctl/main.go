package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammEngine/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a JSONL file of operations to the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("results", "./data/results.jsonl", "applied operation results JSONL")
	replayCmd.Flags().String("errors", "./data/errors.jsonl", "rejected operation JSONL")
	replayCmd.Flags().String("events", "./data/events.jsonl", "event journal JSONL")
	replayCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	replayCmd.Flags().Bool("snapshot-db", false, "keep the snapshot in Postgres instead of a file")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN; events are also stored there when set")
	replayCmd.Flags().String("engine", "default", "engine name scoping Postgres rows")
	replayCmd.Flags().Uint64("batch-size", 500, "operations per checkpoint")
	replayCmd.Flags().Bool("resume", false, "resume from the last snapshot")
	replayCmd.Flags().String("clock", config.ClockManual, "logical clock (manual, block)")
	replayCmd.Flags().Uint64("clock-start", 0, "initial manual clock value")
	replayCmd.Flags().String("rpc", "", "chain RPC URL for the block clock")
	replayCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a trade against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("kind", config.QuoteOut, "quote kind (out, in, ratio)")
	quoteCmd.Flags().Uint64("amount", 0, "input amount (out, ratio) or desired output (in)")
	quoteCmd.Flags().Uint64("reserve-in", 0, "reserve of the input asset")
	quoteCmd.Flags().Uint64("reserve-out", 0, "reserve of the output asset")
	quoteCmd.Flags().Uint32("fee-bps", 30, "fee in basis points")
	quoteCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print pools and spot prices from a snapshot",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	inspectCmd.Flags().String("pg-dsn", "", "Postgres DSN; read the snapshot from the database")
	inspectCmd.Flags().String("engine", "default", "engine name scoping Postgres rows")
	inspectCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the event journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input event journal JSONL")
	aggregateCmd.Flags().Duration("window", 5*time.Minute, "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().String("engine", "default", "engine name scoping Postgres rows")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
