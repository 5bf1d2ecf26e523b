package core

// limiter.go serializes pipeline operations.
//
// File processing, single fixes and bulk auto-fix all mutate the ledger and
// call the assistant, so at most one may run per pipeline. The gate is a
// semaphore of capacity one: a second caller waits up to maxWait and then
// fails with ErrPipelineBusy. WaitForDrain lets shutdown wait for the active
// operation to finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPipelineBusy is returned when another operation holds the pipeline and
// the wait timeout expires. Clients should retry after a short delay.
var ErrPipelineBusy = errors.New("pipeline busy with another operation, please try again later")

// DefaultGateWait is how long to wait for the pipeline before rejecting.
const DefaultGateWait = 30 * time.Second

// OperationGate admits one pipeline operation at a time.
type OperationGate struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
	name   string
}

// NewOperationGate creates a gate. Callers that cannot enter within maxWait
// receive ErrPipelineBusy.
func NewOperationGate(maxWait time.Duration) *OperationGate {
	if maxWait <= 0 {
		maxWait = DefaultGateWait
	}
	return &OperationGate{
		semaphore: make(chan struct{}, 1),
		maxWait:   maxWait,
	}
}

// Acquire enters the gate for the named operation.
// The caller MUST call Release() when the operation completes (use defer).
func (g *OperationGate) Acquire(ctx context.Context, op string) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.semaphore <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.name = op
		g.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPipelineBusy
	}
}

// TryAcquire enters the gate without blocking.
func (g *OperationGate) TryAcquire(op string) bool {
	select {
	case g.semaphore <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.name = op
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release leaves the gate.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (g *OperationGate) Release() {
	g.mu.Lock()
	g.active--
	g.name = ""
	g.mu.Unlock()

	<-g.semaphore
}

// Busy reports whether an operation currently holds the gate.
func (g *OperationGate) Busy() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active > 0
}

// WaitForDrain blocks until the active operation completes or ctx is done.
func (g *OperationGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GateStatus is a snapshot of the gate for monitoring.
type GateStatus struct {
	Busy      bool   `json:"busy"`
	Operation string `json:"operation,omitempty"`
}

// Status returns the current gate state.
func (g *OperationGate) Status() GateStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return GateStatus{Busy: g.active > 0, Operation: g.name}
}
