// Package amm implements the constant-product pool engine: a registry of
// pools keyed by canonical asset pair and fee tier, fee-adjusted pricing,
// LP share accounting and the deadline/slippage guards around every
// mutating call.
//
// Every mutating call runs read-compute-validate-write under the pool's
// exclusive lock and commits all new values in one step, so a rejected call
// leaves no trace.
package amm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ammEngine/internal/model"
)

// Clock supplies the logical time deadlines are checked against.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// EventSink receives committed mutations. Emit is called with the pool lock
// held, so per-pool events arrive in commit order; it must not block on the
// engine.
type EventSink interface {
	Emit(event model.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventSink sets the sink for committed events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithWallClock overrides the wall clock used to timestamp events.
func WithWallClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the pools and serializes mutations per pool.
type Engine struct {
	clock  Clock
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time

	seq atomic.Uint64
	reg *registry
}

// New builds an empty engine that checks deadlines against clock.
func New(clock Clock, opts ...Option) *Engine {
	e := &Engine{
		clock:  clock,
		logger: zap.NewNop(),
		now:    time.Now,
		reg:    newRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreatePool registers a pool for the pair and fee tier. The pair is
// canonicalised, so argument order does not matter.
func (e *Engine) CreatePool(ctx context.Context, assetX, assetY string, feeBps uint32) (model.PoolID, error) {
	if err := validatePair(assetX, assetY, feeBps); err != nil {
		return 0, e.reject(model.OpCreatePool, 0, err)
	}

	now, err := e.clock.Now(ctx)
	if err != nil {
		e.logger.Warn("pool created without clock", zap.Error(err))
	}

	// insert publishes the pool already locked, so pool_created is the
	// first event any caller can observe for it.
	key := model.NewPoolKey(assetX, assetY, feeBps)
	st, err := e.reg.insert(key)
	if err != nil {
		return 0, e.reject(model.OpCreatePool, 0, err)
	}
	e.emit(model.EventPoolCreated, st, now, model.PoolCreatedData{
		AssetX: st.assetX,
		AssetY: st.assetY,
		FeeBps: st.feeBps,
	})
	st.mu.Unlock()

	e.logger.Info("pool created",
		zap.Uint64("pool_id", uint64(st.id)),
		zap.String("key", key.String()),
	)
	return st.id, nil
}

// GetPool returns a snapshot of the pool.
func (e *Engine) GetPool(id model.PoolID) (model.Pool, error) {
	st, err := e.reg.get(id)
	if err != nil {
		return model.Pool{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshotLocked(), nil
}

// FindPool returns the pool registered for the pair and fee tier.
func (e *Engine) FindPool(assetA, assetB string, feeBps uint32) (model.Pool, error) {
	st, err := e.reg.lookup(model.NewPoolKey(assetA, assetB, feeBps))
	if err != nil {
		return model.Pool{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshotLocked(), nil
}

// ListPools returns snapshots of every pool ordered by id.
func (e *Engine) ListPools() []model.Pool {
	states := e.reg.all()
	out := make([]model.Pool, 0, len(states))
	for _, st := range states {
		st.mu.RLock()
		out = append(out, st.snapshotLocked())
		st.mu.RUnlock()
	}
	return out
}

// Position returns the provider's share balance in the pool. A provider
// who never deposited has a zero balance.
func (e *Engine) Position(id model.PoolID, provider string) (model.LiquidityPosition, error) {
	st, err := e.reg.get(id)
	if err != nil {
		return model.LiquidityPosition{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return model.LiquidityPosition{PoolID: id, Provider: provider, Shares: st.positions[provider]}, nil
}

// Snapshot captures every pool and position. Pools are read one at a time,
// so concurrent writers may land between pools.
func (e *Engine) Snapshot(ctx context.Context) (model.Snapshot, error) {
	now, err := e.clock.Now(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrClockUnavailable, err)
	}

	snap := model.Snapshot{
		Clock:     now,
		Pools:     make([]model.Pool, 0),
		Positions: make([]model.LiquidityPosition, 0),
	}
	for _, st := range e.reg.all() {
		st.mu.RLock()
		snap.Pools = append(snap.Pools, st.snapshotLocked())
		snap.Positions = append(snap.Positions, st.positionsLocked()...)
		st.mu.RUnlock()
	}
	snap.NextSeq = e.seq.Load()
	snap.UpdatedAt = e.now().UTC().Format(time.RFC3339Nano)
	return snap, nil
}

// Restore rebuilds an engine from a snapshot, checking that ids are dense,
// keys unique, positions sum to total shares and reserves back every
// outstanding share.
func Restore(snap model.Snapshot, clock Clock, opts ...Option) (*Engine, error) {
	e := New(clock, opts...)

	for i, pool := range snap.Pools {
		if pool.ID != model.PoolID(i) {
			return nil, fmt.Errorf("restore pool %d: id out of sequence", pool.ID)
		}
		if err := validatePair(pool.AssetX, pool.AssetY, pool.FeeBps); err != nil {
			return nil, fmt.Errorf("restore pool %d: %w", pool.ID, err)
		}
		if pool.AssetY < pool.AssetX {
			return nil, fmt.Errorf("restore pool %d: pair not canonical", pool.ID)
		}
		if pool.TotalShares > 0 && (pool.ReserveX == 0 || pool.ReserveY == 0) {
			return nil, fmt.Errorf("restore pool %d: shares outstanding against empty reserve", pool.ID)
		}
		if pool.TotalShares == 0 && (pool.ReserveX != 0 || pool.ReserveY != 0) {
			return nil, fmt.Errorf("restore pool %d: reserves without shares", pool.ID)
		}
		stats, err := parseStats(pool.Stats)
		if err != nil {
			return nil, fmt.Errorf("restore pool %d: %w", pool.ID, err)
		}
		st, err := e.reg.insert(pool.Key())
		if err != nil {
			return nil, fmt.Errorf("restore pool %d: %w", pool.ID, err)
		}
		st.reserveX = pool.ReserveX
		st.reserveY = pool.ReserveY
		st.totalShares = pool.TotalShares
		st.stats = stats
		st.mu.Unlock()
	}

	sums := make(map[model.PoolID]uint64, len(snap.Pools))
	for _, pos := range snap.Positions {
		st, err := e.reg.get(pos.PoolID)
		if err != nil {
			return nil, fmt.Errorf("restore position %s: %w", pos.Provider, err)
		}
		if _, dup := st.positions[pos.Provider]; dup {
			return nil, fmt.Errorf("restore position %s: duplicate in pool %d", pos.Provider, pos.PoolID)
		}
		st.positions[pos.Provider] = pos.Shares
		sum := sums[pos.PoolID] + pos.Shares
		if sum < pos.Shares {
			return nil, fmt.Errorf("restore pool %d: %w", pos.PoolID, ErrOverflow)
		}
		sums[pos.PoolID] = sum
	}
	for _, pool := range snap.Pools {
		if sums[pool.ID] != pool.TotalShares {
			return nil, fmt.Errorf("restore pool %d: positions sum %d, total shares %d", pool.ID, sums[pool.ID], pool.TotalShares)
		}
	}

	e.seq.Store(snap.NextSeq)
	return e, nil
}

// emit publishes a committed mutation. Callers hold st.mu.
func (e *Engine) emit(kind string, st *poolState, clock uint64, data interface{}) {
	seq := e.seq.Add(1) - 1
	if e.sink == nil {
		return
	}
	e.sink.Emit(model.Event{
		Seq:       seq,
		Kind:      kind,
		PoolID:    st.id,
		Clock:     clock,
		Timestamp: uint64(e.now().Unix()),
		Pool:      st.eventStateLocked(),
		Data:      data,
	})
}

func (e *Engine) reject(op string, id model.PoolID, err error) error {
	e.logger.Debug("call rejected",
		zap.String("op", op),
		zap.Uint64("pool_id", uint64(id)),
		zap.Int("code", CodeOf(err)),
		zap.Error(err),
	)
	return err
}
