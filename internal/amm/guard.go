package amm

import (
	"context"
	"fmt"
)

// checkDeadline reads the clock once and rejects calls whose deadline has
// passed. A deadline equal to the clock is still live.
func (e *Engine) checkDeadline(ctx context.Context, deadline uint64) (uint64, error) {
	now, err := e.clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClockUnavailable, err)
	}
	if deadline < now {
		return now, &DeadlineError{Deadline: deadline, Clock: now}
	}
	return now, nil
}

func checkMin(field string, computed, min uint64) error {
	if computed < min {
		return &SlippageError{Field: field, Computed: computed, Limit: min}
	}
	return nil
}

func checkMax(field string, computed, max uint64) error {
	if computed > max {
		return &SlippageError{Field: field, Computed: computed, Limit: max, Maximum: true}
	}
	return nil
}
