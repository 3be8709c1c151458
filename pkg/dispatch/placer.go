package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/redact"
	"github.com/harunnryd/sampark/pkg/session"
	"github.com/harunnryd/sampark/pkg/transports"
)

// Placer places one outbound call and registers its session.
type Placer interface {
	Place(ctx context.Context, seed dialog.Seed) (dialog.Session, error)
}

type CallPlacerOptions struct {
	Dialer   transports.Dialer
	Sessions session.Store
	Pending  *session.Pending
	Calls    *calllog.Logger
	Timeout  time.Duration
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// CallPlacer is the Placer shared by single and bulk calls. The seed is
// registered under a correlation ref before dialing so an answer webhook that
// beats the dial response can still build the session.
type CallPlacer struct {
	dialer   transports.Dialer
	sessions session.Store
	pending  *session.Pending
	calls    *calllog.Logger
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewCallPlacer(opts CallPlacerOptions) *CallPlacer {
	if opts.Pending == nil {
		opts.Pending = session.NewPending(0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CallPlacer{
		dialer:   opts.Dialer,
		sessions: opts.Sessions,
		pending:  opts.Pending,
		calls:    opts.Calls,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

func (p *CallPlacer) Place(ctx context.Context, seed dialog.Seed) (dialog.Session, error) {
	if seed.Phone == "" {
		return dialog.Session{}, errorsx.Validation("phone number required")
	}
	ref := p.pending.Expect(seed)
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	sid, err := p.dialer.PlaceCall(dialCtx, transports.CallRequest{To: seed.Phone, Ref: ref})
	cancel()
	if err != nil {
		p.pending.Drop(ref)
		p.metrics.Dispatch("failed")
		return dialog.Session{}, errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}

	s := dialog.NewSession(sid, seed, p.now())
	if !p.sessions.Insert(s) {
		// The answer webhook registered it first.
		if existing, ok := p.sessions.Get(sid); ok {
			s = existing
		}
	}
	p.metrics.Dispatch("placed")
	p.metrics.SetSessions(p.sessions.Len())
	p.calls.Started(ctx, s)
	p.logger.Info("call_placed",
		"call_sid", sid,
		"phone", redact.Phone(seed.Phone),
		"batch_id", seed.BatchID,
		"namespace", s.Namespace,
	)
	return s, nil
}
