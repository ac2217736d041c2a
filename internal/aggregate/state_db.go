package aggregate

import (
	"context"

	"ammEngine/internal/storage/postgres"
)

// DBStateStore keeps the watermark in engine_state. Name defaults to
// "aggregate"; the row is scoped to the store's engine.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) key() string {
	if s.Name == "" {
		return "aggregate"
	}
	return s.Name
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.key())
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.key(), ts)
}
