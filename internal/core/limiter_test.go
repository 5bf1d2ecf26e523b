package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOperationGate_AcquireRelease(t *testing.T) {
	gate := NewOperationGate(time.Second)

	if gate.Busy() {
		t.Fatal("new gate should not be busy")
	}

	if err := gate.Acquire(context.Background(), "process_files"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	status := gate.Status()
	if !status.Busy {
		t.Error("Status().Busy = false after Acquire, want true")
	}
	if status.Operation != "process_files" {
		t.Errorf("Status().Operation = %q, want %q", status.Operation, "process_files")
	}

	gate.Release()

	if gate.Busy() {
		t.Error("gate still busy after Release")
	}
	if got := gate.Status().Operation; got != "" {
		t.Errorf("Operation after Release = %q, want empty", got)
	}
}

func TestOperationGate_BlocksWhenHeld(t *testing.T) {
	gate := NewOperationGate(100 * time.Millisecond)
	ctx := context.Background()

	if err := gate.Acquire(ctx, "fix"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	start := time.Now()
	err := gate.Acquire(ctx, "fix_all")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPipelineBusy) {
		t.Errorf("expected ErrPipelineBusy, got %v", err)
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("Acquire returned after %v, expected to wait ~100ms", elapsed)
	}
}

func TestOperationGate_ContextCancelled(t *testing.T) {
	gate := NewOperationGate(5 * time.Second)

	if err := gate.Acquire(context.Background(), "fix"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := gate.Acquire(ctx, "fix")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOperationGate_TryAcquire(t *testing.T) {
	gate := NewOperationGate(time.Second)

	if !gate.TryAcquire("a") {
		t.Fatal("first TryAcquire should succeed")
	}
	if gate.TryAcquire("b") {
		t.Error("second TryAcquire should fail while held")
	}

	gate.Release()

	if !gate.TryAcquire("c") {
		t.Error("TryAcquire after Release should succeed")
	}
	gate.Release()
}

func TestOperationGate_SerializesOperations(t *testing.T) {
	gate := NewOperationGate(5 * time.Second)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(ctx, "op"); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer gate.Release()

			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent operations = %d, want 1", maxSeen)
	}
}

func TestOperationGate_WaitForDrain(t *testing.T) {
	gate := NewOperationGate(time.Second)

	if err := gate.Acquire(context.Background(), "fix_all"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		gate.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain failed: %v", err)
	}
	if gate.Busy() {
		t.Error("gate busy after drain")
	}
}

func TestOperationGate_WaitForDrainTimeout(t *testing.T) {
	gate := NewOperationGate(time.Second)

	if err := gate.Acquire(context.Background(), "fix_all"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := gate.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
