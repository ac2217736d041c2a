package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammEngine/internal/model"
)

// Store provides Postgres persistence for engine state, events and metrics.
type Store struct {
	pool   *pgxpool.Pool
	engine string
}

// NewStore connects to dsn. Rows are scoped to engine so several engines
// can share one database.
func NewStore(ctx context.Context, dsn, engine string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if engine == "" {
		engine = "default"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, engine: engine}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// execer is the part of pgxpool.Pool and pgx.Tx the writers need.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	return s.upsertPools(ctx, s.pool, pools)
}

func (s *Store) upsertPools(ctx context.Context, q execer, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				engine, pool_id, asset_x, asset_y, fee_bps, reserve_x, reserve_y, total_shares,
				swap_count, volume_x, volume_y, fees_x, fees_y, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (engine, pool_id)
			DO UPDATE SET
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				total_shares = EXCLUDED.total_shares,
				swap_count = EXCLUDED.swap_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fees_x = EXCLUDED.fees_x,
				fees_y = EXCLUDED.fees_y,
				updated_at = now()
		`,
			s.engine,
			int64(pool.ID),
			pool.AssetX,
			pool.AssetY,
			int32(pool.FeeBps),
			u64(pool.ReserveX),
			u64(pool.ReserveY),
			u64(pool.TotalShares),
			int64(pool.Stats.SwapCount),
			numeric(pool.Stats.VolumeX),
			numeric(pool.Stats.VolumeY),
			numeric(pool.Stats.FeesX),
			numeric(pool.Stats.FeesY),
		)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func numeric(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

// ReplacePositions swaps the stored positions for the given set in one
// transaction.
func (s *Store) ReplacePositions(ctx context.Context, positions []model.LiquidityPosition) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.replacePositions(ctx, tx, positions)
	})
}

func (s *Store) replacePositions(ctx context.Context, q execer, positions []model.LiquidityPosition) error {
	if _, err := q.Exec(ctx, `DELETE FROM positions WHERE engine=$1`, s.engine); err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, pos := range positions {
		batch.Queue(`
			INSERT INTO positions (engine, pool_id, provider, shares, updated_at)
			VALUES ($1, $2, $3, $4, now())
		`, s.engine, int64(pos.PoolID), pos.Provider, u64(pos.Shares))
	}
	br := q.SendBatch(ctx, batch)
	for range positions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// CommitSnapshot mirrors pools and positions and stores the snapshot
// document in a single transaction.
func (s *Store) CommitSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.upsertPools(ctx, tx, snap.Pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		if err := s.replacePositions(ctx, tx, snap.Positions); err != nil {
			return fmt.Errorf("replace positions: %w", err)
		}
		if err := s.saveSnapshot(ctx, tx, name, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PutEventBatch inserts events, skipping sequences already stored.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		batch.Queue(`
			INSERT INTO pool_events (
				engine, seq, kind, pool_id, clock, ts, reserve_x, reserve_y, total_shares, data, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (engine, seq) DO NOTHING
		`,
			s.engine,
			int64(ev.Seq),
			ev.Kind,
			int64(ev.PoolID),
			int64(ev.Clock),
			int64(ev.Timestamp),
			u64(ev.Pool.ReserveX),
			u64(ev.Pool.ReserveY),
			u64(ev.Pool.TotalShares),
			data,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts the snapshot document under name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	return s.saveSnapshot(ctx, s.pool, name, snap)
}

func (s *Store) saveSnapshot(ctx context.Context, q execer, name string, snap model.Snapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO engine_snapshots (engine, name, applied_ops, next_seq, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (engine, name) DO UPDATE
		SET applied_ops = EXCLUDED.applied_ops,
			next_seq = EXCLUDED.next_seq,
			body = EXCLUDED.body,
			updated_at = now()
	`, s.engine, name, int64(snap.AppliedOps), int64(snap.NextSeq), data)
	return err
}

// LoadSnapshot returns the snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.Snapshot, bool, error) {
	if name == "" {
		return model.Snapshot{}, false, fmt.Errorf("snapshot name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT body FROM engine_snapshots WHERE engine=$1 AND name=$2`, s.engine, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				engine, pool_id, asset_x, asset_y, fee_bps, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_x, volume_y, fee_x, fee_y, fee_rate_x, fee_rate_y,
				reserve_x, reserve_y, apr, first_seq, last_seq, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now(),now())
			ON CONFLICT (engine, pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				apr = EXCLUDED.apr,
				first_seq = EXCLUDED.first_seq,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
		`,
			s.engine,
			int64(m.PoolID),
			m.AssetX,
			m.AssetY,
			int32(m.FeeBps),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.FeeRateX,
			m.FeeRateY,
			m.ReserveX,
			m.ReserveY,
			m.APR,
			int64(m.FirstSeq),
			int64(m.LastSeq),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the progress marker stored for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var v int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM engine_state WHERE engine=$1 AND name=$2`, s.engine, name)
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(v), true, nil
}

// SaveState upserts the progress marker for a name.
func (s *Store) SaveState(ctx context.Context, name string, v uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (engine, name, last_processed, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (engine, name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, s.engine, name, int64(v))
	return err
}
