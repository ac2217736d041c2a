package storage

import (
	"context"
	"sync"

	"ammEngine/internal/model"
)

// Journal buffers engine events until they are flushed to storage. It
// implements the engine's event sink.
type Journal struct {
	mu     sync.Mutex
	events []model.Event
}

func NewJournal() *Journal {
	return &Journal{}
}

// Emit appends an event.
func (j *Journal) Emit(event model.Event) {
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
}

// Len returns the number of buffered events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

// Drain removes and returns the buffered events in emission order.
func (j *Journal) Drain() []model.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.events
	j.events = nil
	return out
}

// Flush writes the buffered events to dst. On failure the events are put
// back ahead of anything emitted meanwhile.
func (j *Journal) Flush(ctx context.Context, dst EventStorage) (int, error) {
	events := j.Drain()
	if len(events) == 0 {
		return 0, nil
	}
	if err := dst.PutEventBatch(ctx, events); err != nil {
		j.mu.Lock()
		j.events = append(events, j.events...)
		j.mu.Unlock()
		return 0, err
	}
	return len(events), nil
}
