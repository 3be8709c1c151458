package runner

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	BannerOutput = io.Discard
	goleak.VerifyTestMain(m)
}

func TestRunDrainsOnCancel(t *testing.T) {
	var started, drained, stopped atomic.Bool
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		drained.Store(true)
		return nil
	}), Hooks{
		OnStart: func(ctx context.Context) error { started.Store(true); return nil },
		OnStop:  func() { stopped.Store(true) },
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for r.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatalf("runner never reached running, state %s", r.State())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !started.Load() || !drained.Load() || !stopped.Load() {
		t.Fatalf("hooks not called: start=%v drain=%v stop=%v", started.Load(), drained.Load(), stopped.Load())
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state on second run, got %v", err)
	}
}

func TestStopEndsRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	for r.State() != StateRunning {
		time.Sleep(time.Millisecond)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestStartFailureDrains(t *testing.T) {
	var drained atomic.Bool
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		drained.Store(true)
		return nil
	}), Hooks{
		OnStart: func(ctx context.Context) error { return errors.New("listen failed") },
	}, time.Second)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if !drained.Load() || r.State() != StateStopped {
		t.Fatalf("expected drained stop, state %s", r.State())
	}
}

func TestDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), Hooks{}, 10*time.Millisecond)
	if err := r.Stop(); err == nil || err.Error() != "drain timeout" {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}
