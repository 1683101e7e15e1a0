package printer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrResourceExhausted is returned when a render slot does not free up in time
var ErrResourceExhausted = errors.New("resource exhausted")

// Gate is a counting admission gate for the rasterization stage
type Gate struct {
	slots   chan struct{}
	waiting atomic.Int32
}

// NewGate creates a gate with n slots
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire waits up to wait for a slot. Every successful Acquire must be paired
// with a Release on the same gate.
func (g *Gate) Acquire(ctx context.Context, wait time.Duration) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	default:
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case g.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: no render slot free after %s", ErrResourceExhausted, wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot
func (g *Gate) Release() {
	<-g.slots
}

// Size is the number of slots
func (g *Gate) Size() int {
	return cap(g.slots)
}

// InUse is the number of slots currently held
func (g *Gate) InUse() int {
	return len(g.slots)
}

// Waiting is the number of jobs queued for a slot
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}
