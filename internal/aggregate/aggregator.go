// Package aggregate rolls engine event journals up into fixed time windows
// per pool: swap count, volume and fees per side, closing reserves, fee
// rates against those reserves and an annualised yield estimate.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// MetricsSink receives finished windows. *postgres.Store satisfies it.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Stats counts what a run did.
type Stats struct {
	Total      int
	Duplicates int
	Skipped    int
	Failed     int
	Windows    int
}

// Aggregator aggregates engine events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[model.PoolID]*Accumulator
	seen         map[uint64]struct{}
}

func NewAggregator(cfg Config, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[model.PoolID]*Accumulator),
		seen:         make(map[uint64]struct{}),
	}
}

// Run executes aggregation over an event journal.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return stats, err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs

	err = storage.ReadEvents(inputPath, func(record model.EventRecord) error {
		stats.Total++

		if a.isDuplicate(record.Seq) {
			stats.Duplicates++
			return nil
		}
		if record.Timestamp <= startTs {
			stats.Skipped++
			return nil
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[record.PoolID]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.PoolID] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.finish(acc))
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.PoolID] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.Uint64("pool_id", uint64(record.PoolID)), zap.Uint64("seq", record.Seq))
			return nil
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			stats.Windows += len(batch)
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	ids := make([]model.PoolID, 0, len(a.accumulators))
	for id := range a.accumulators {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		batch = append(batch, a.finish(a.accumulators[id]))
	}
	a.accumulators = make(map[model.PoolID]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return stats, err
		}
		stats.Windows += len(batch)
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("windows", stats.Windows),
	)

	return stats, nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the last timestamp whose windows are all closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) finish(acc *Accumulator) model.PoolWindowMetrics {
	feeRateX, feeRateY := computeFeeRates(acc.FeeX, acc.FeeY, acc.ReserveX, acc.ReserveY)
	apr := computeAPR(feeRateX, feeRateY, a.cfg.WindowSeconds)

	return model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		AssetX:         acc.AssetX,
		AssetY:         acc.AssetY,
		FeeBps:         acc.FeeBps,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		VolumeX:        acc.VolumeX.String(),
		VolumeY:        acc.VolumeY.String(),
		FeeX:           acc.FeeX.String(),
		FeeY:           acc.FeeY.String(),
		FeeRateX:       feeRateX,
		FeeRateY:       feeRateY,
		ReserveX:       fmt.Sprintf("%d", acc.ReserveX),
		ReserveY:       fmt.Sprintf("%d", acc.ReserveY),
		APR:            apr,
		FirstSeq:       acc.FirstSeq,
		LastSeq:        acc.LastSeq,
	}
}

func (a *Aggregator) isDuplicate(seq uint64) bool {
	if _, ok := a.seen[seq]; ok {
		return true
	}
	a.seen[seq] = struct{}{}
	return false
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[model.PoolID]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
