package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidState = errors.New("invalid state transition")

type LifecycleRunner struct {
	state    int32
	ctx      context.Context
	cancel   context.CancelFunc
	onceStop sync.Once
	hooks    Hooks
	drainer  Drainer
	stopErr  error
	timeout  time.Duration
	stopped  chan struct{}
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LifecycleRunner{
		state:   int32(StateNew),
		ctx:     ctx,
		cancel:  cancel,
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		stopped: make(chan struct{}),
	}
}

// Run starts the hooks and blocks until ctx is done or Stop is called, then
// drains within the configured timeout.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return ErrInvalidState
	}
	PrintBanner()
	if ctx != nil {
		release := context.AfterFunc(ctx, r.cancel)
		defer release()
	}
	if r.hooks.OnStart != nil {
		if err := r.hooks.OnStart(r.ctx); err != nil {
			r.cancel()
			_ = r.stop()
			return fmt.Errorf("start: %w", err)
		}
	}
	r.casState(StateStarting, StateRunning)
	<-r.ctx.Done()
	return r.stop()
}

func (r *LifecycleRunner) Stop() error {
	r.cancel()
	if r.State() == StateNew {
		return r.stop()
	}
	<-r.stopped
	return r.stopErr
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// Context is canceled when the runner begins draining.
func (r *LifecycleRunner) Context() context.Context {
	return r.ctx
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		defer close(r.stopped)
		r.setState(StateDraining)
		if r.drainer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			err := r.drainer.Drain(ctx)
			cancel()
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				r.stopErr = errors.New("drain timeout")
			case err != nil:
				r.stopErr = err
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
