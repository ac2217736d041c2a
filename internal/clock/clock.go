// Package clock provides the logical clocks deadlines are checked against.
package clock

import (
	"context"
	"sync/atomic"
)

// Clock reports the current logical time.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// Manual is a clock advanced by its owner. The zero value reads 0.
type Manual struct {
	now atomic.Uint64
}

// NewManual returns a manual clock starting at start.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

// Now returns the current value.
func (m *Manual) Now(context.Context) (uint64, error) {
	return m.now.Load(), nil
}

// Set moves the clock to v. Values behind the current time are ignored so
// the clock never runs backwards; the resulting value is returned.
func (m *Manual) Set(v uint64) uint64 {
	for {
		cur := m.now.Load()
		if v <= cur {
			return cur
		}
		if m.now.CompareAndSwap(cur, v) {
			return v
		}
	}
}

// Advance moves the clock forward by d and returns the new value.
func (m *Manual) Advance(d uint64) uint64 {
	return m.now.Add(d)
}
