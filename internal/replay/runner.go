// Package replay drives an engine from a JSONL file of operations,
// journaling results, rejections and events, and checkpointing the engine
// so an interrupted run resumes where it stopped.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/clock"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	In        string
	BatchSize uint64
	Resume    bool
}

// Writer receives one JSON record per call.
type Writer interface {
	Write(value interface{}) error
	Flush() error
}

// Deps are the collaborators of a Runner. Manual, when set, is moved
// forward by each operation's clock field; it should also be Clock.
type Deps struct {
	Clock     amm.Clock
	Manual    *clock.Manual
	Events    storage.EventStorage
	Snapshots storage.SnapshotStore
	Results   Writer
	Errors    Writer
	Logger    *zap.Logger
}

// Summary counts what a run did.
type Summary struct {
	Lines     uint64
	Applied   uint64
	Rejected  uint64
	Malformed uint64
	Skipped   uint64
	Events    uint64
}

// Runner applies operations to an engine in input order.
type Runner struct {
	cfg     RunConfig
	deps    Deps
	logger  *zap.Logger
	journal *storage.Journal
	engine  *amm.Engine
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		journal: storage.NewJournal(),
	}
}

// Engine returns the engine of the last run.
func (r *Runner) Engine() *amm.Engine {
	return r.engine
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.deps.Clock == nil {
		return sum, fmt.Errorf("clock is nil")
	}
	if r.deps.Events == nil {
		return sum, fmt.Errorf("event storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return sum, fmt.Errorf("batch size must be greater than zero")
	}

	opts := []amm.Option{amm.WithLogger(r.logger), amm.WithEventSink(r.journal)}

	var applied uint64
	r.engine = amm.New(r.deps.Clock, opts...)
	if r.cfg.Resume && r.deps.Snapshots != nil {
		snap, ok, err := r.deps.Snapshots.Load(ctx)
		if err != nil {
			return sum, fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			engine, err := amm.Restore(snap, r.deps.Clock, opts...)
			if err != nil {
				return sum, fmt.Errorf("restore snapshot: %w", err)
			}
			r.engine = engine
			applied = snap.AppliedOps
			if r.deps.Manual != nil {
				r.deps.Manual.Set(snap.Clock)
			}
			r.logger.Info("resume from snapshot",
				zap.Uint64("applied_ops", applied),
				zap.Int("pools", len(snap.Pools)),
				zap.Uint64("next_seq", snap.NextSeq),
			)
		}
	}

	file, err := os.Open(r.cfg.In)
	if err != nil {
		return sum, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	var pending uint64
	checkpointed := applied
	err = storage.ScanLines(file, func(lineNo uint64, line []byte) error {
		sum.Lines = lineNo
		if lineNo <= applied {
			sum.Skipped++
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.apply(ctx, lineNo, line, &sum)
		pending++
		if pending >= r.cfg.BatchSize {
			pending = 0
			checkpointed = lineNo
			return r.checkpoint(ctx, lineNo, &sum)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}

	if sum.Lines > checkpointed {
		if err := r.checkpoint(ctx, sum.Lines, &sum); err != nil {
			return sum, err
		}
	}

	r.logger.Info("replay complete",
		zap.Uint64("lines", sum.Lines),
		zap.Uint64("applied", sum.Applied),
		zap.Uint64("rejected", sum.Rejected),
		zap.Uint64("malformed", sum.Malformed),
		zap.Uint64("skipped", sum.Skipped),
		zap.Uint64("events", sum.Events),
	)
	return sum, nil
}

func (r *Runner) apply(ctx context.Context, lineNo uint64, line []byte, sum *Summary) {
	var op model.Operation
	if err := json.Unmarshal(line, &op); err != nil {
		sum.Malformed++
		r.write(r.deps.Errors, model.OpError{Line: lineNo, Error: fmt.Sprintf("parse operation: %v", err)})
		return
	}
	if op.Clock != 0 && r.deps.Manual != nil {
		r.deps.Manual.Set(op.Clock)
	}

	res, err := Apply(ctx, r.engine, lineNo, op)
	if err != nil {
		sum.Rejected++
		r.write(r.deps.Errors, opError(lineNo, op, err))
		return
	}
	sum.Applied++
	r.write(r.deps.Results, res)
}

func (r *Runner) write(w Writer, value interface{}) {
	if w == nil {
		return
	}
	if err := w.Write(value); err != nil {
		r.logger.Warn("write record failed", zap.Error(err))
	}
}

// checkpoint flushes events and journals, then records lineNo as applied.
func (r *Runner) checkpoint(ctx context.Context, lineNo uint64, sum *Summary) error {
	n, err := r.journal.Flush(ctx, r.deps.Events)
	if err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	sum.Events += uint64(n)

	for _, w := range []Writer{r.deps.Results, r.deps.Errors} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush journal: %w", err)
		}
	}

	if r.deps.Snapshots != nil {
		snap, err := r.engine.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		snap.AppliedOps = lineNo
		if err := r.deps.Snapshots.Save(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	r.logger.Info("batch complete", zap.Uint64("line", lineNo), zap.Int("events", n))
	return nil
}
