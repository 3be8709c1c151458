package calllog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/sampark/pkg/metrics"
)

// Recorder writes call events from a single background goroutine. Record
// never blocks: when the buffer is full the event is dropped and counted.
type Recorder struct {
	store   CallStore
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

func NewRecorder(store CallStore, buffer int, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:   store,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		ch:      make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) Record(ev Event) {
	if r == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- ev:
	default:
		r.dropped.Add(1)
		r.metrics.EventDropped()
	}
}

func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.store.InsertEvent(ctx, ev); err != nil {
			r.logger.Warn("call_event_write_failed", "call_sid", ev.CallSID, "error", err)
		}
		cancel()
	}
}
