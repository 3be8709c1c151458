package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/redact"
	"github.com/harunnryd/sampark/pkg/sheets"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultInterval paces bulk placements.
const DefaultInterval = 1500 * time.Millisecond

// Batch is one bulk request. Seed carries the script context shared by every
// number; its phone and batch id are filled per item.
type Batch struct {
	ID     string
	Phones []string
	Seed   dialog.Seed
}

// Result is the outcome of one batch item.
type Result struct {
	Index   int
	Phone   string
	Offset  time.Duration
	CallSID string
	Err     error
}

type Options struct {
	Interval time.Duration
	// Concurrency bounds in-flight placements; zero means unbounded. Items
	// past the bound start on schedule and wait for a free slot.
	Concurrency int
	Timeout     time.Duration
	Now         func() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep   func(ctx context.Context, d time.Duration) error
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Dispatcher schedules bulk placements at fixed offsets. Items are
// independent: a failing or panicking item is reported against its own
// number and never delays, skips or cancels the others.
type Dispatcher struct {
	placer  Placer
	tracker sheets.Tracker
	opts    Options

	wg sync.WaitGroup
}

func New(placer Placer, tracker sheets.Tracker, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{placer: placer, tracker: tracker, opts: opts}
}

// Offsets returns the start offset of every item of an n-item batch.
func (d *Dispatcher) Offsets(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(i) * d.opts.Interval
	}
	return out
}

// Start runs the batch in the background. Wait blocks until every started
// batch has finished.
func (d *Dispatcher) Start(ctx context.Context, b Batch) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Run(ctx, b)
	}()
}

// Wait blocks until background batches finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run places every number of b and returns one result per item, in order.
// Cancelling ctx stops scheduling; items already placed are unaffected and
// unscheduled items report ctx's error.
func (d *Dispatcher) Run(ctx context.Context, b Batch) []Result {
	results := make([]Result, len(b.Phones))
	offsets := d.Offsets(len(b.Phones))
	start := d.opts.Now()
	logger := d.opts.Logger.With("batch_id", b.ID)
	logger.Info("bulk_started", "total", len(b.Phones), "interval", d.opts.Interval)

	var (
		g     errgroup.Group
		slots *semaphore.Weighted
	)
	if d.opts.Concurrency > 0 {
		slots = semaphore.NewWeighted(int64(d.opts.Concurrency))
	}
	for i, phone := range b.Phones {
		results[i] = Result{Index: i, Phone: phone, Offset: offsets[i]}
		if wait := start.Add(offsets[i]).Sub(d.opts.Now()); wait > 0 {
			if err := d.opts.Sleep(ctx, wait); err != nil {
				for j := i; j < len(b.Phones); j++ {
					results[j] = Result{Index: j, Phone: b.Phones[j], Offset: offsets[j], Err: err}
				}
				logger.Warn("bulk_cancelled", "remaining", len(b.Phones)-i, "error", err)
				break
			}
		}
		g.Go(func() error {
			// Items queue for a slot here, not in the loop, so a slow
			// placement cannot push later items past their offsets.
			if slots != nil {
				if err := slots.Acquire(ctx, 1); err != nil {
					results[i].Err = err
					return nil
				}
				defer slots.Release(1)
			}
			sid, err := d.placeOne(ctx, b, i, phone)
			results[i].CallSID = sid
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("bulk_finished", "total", len(b.Phones), "failed", failed)
	return results
}

func (d *Dispatcher) placeOne(ctx context.Context, b Batch, i int, phone string) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bulk item %d panicked: %v", i, r)
			d.opts.Logger.Error("bulk_place_panic", "batch_id", b.ID, "index", i, "panic", r)
			d.opts.Metrics.Dispatch("panic")
			d.mark(ctx, phone, b.ID, sheets.StatusFailed, "")
		}
	}()
	seed := b.Seed
	seed.Phone = phone
	seed.BatchID = b.ID
	s, err := d.placer.Place(ctx, seed)
	if err != nil {
		d.opts.Logger.Warn("bulk_place_failed", "batch_id", b.ID, "index", i, "phone", redact.Phone(phone), "error", err)
		d.mark(ctx, phone, b.ID, sheets.StatusFailed, "")
		return "", err
	}
	d.mark(ctx, phone, b.ID, sheets.StatusCalling, s.CallSID)
	return s.CallSID, nil
}

func (d *Dispatcher) mark(ctx context.Context, phone, batchID, status, callSID string) {
	if d.tracker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.Timeout)
	defer cancel()
	if err := d.tracker.MarkBulk(ctx, phone, batchID, status, callSID); err != nil {
		d.opts.Logger.Warn("bulk_sheet_update_failed", "batch_id", batchID, "phone", redact.Phone(phone), "status", status, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
