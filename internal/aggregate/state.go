package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ammEngine/internal/storage"
)

// StateStore persists the last event timestamp whose windows are closed.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps the aggregation watermark in a small JSON file.
type FileStateStore struct {
	Path string
}

type watermark struct {
	ClosedThrough uint64 `json:"closed_through_ts"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read aggregate state: %w", err)
	}

	var mark watermark
	if err := json.Unmarshal(data, &mark); err != nil {
		return 0, false, fmt.Errorf("parse aggregate state: %w", err)
	}
	return mark.ClosedThrough, true, nil
}

func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	data, err := json.Marshal(watermark{
		ClosedThrough: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal aggregate state: %w", err)
	}
	if err := storage.WriteFileAtomic(s.Path, data); err != nil {
		return fmt.Errorf("save aggregate state: %w", err)
	}
	return nil
}
