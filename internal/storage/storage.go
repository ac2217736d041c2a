package storage

import (
	"context"

	"ammEngine/internal/model"
)

// EventStorage defines a sink for committed engine events.
type EventStorage interface {
	PutEventBatch(ctx context.Context, events []model.Event) error
}

// SnapshotStore persists engine snapshots.
type SnapshotStore interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snap model.Snapshot) error
}

// MultiStorage writes each batch to every sink in order and stops at the
// first failure. Sinks must tolerate a batch they already hold.
type MultiStorage []EventStorage

func (m MultiStorage) PutEventBatch(ctx context.Context, events []model.Event) error {
	for _, sink := range m {
		if err := sink.PutEventBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
