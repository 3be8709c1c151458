package calllog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/metrics"
	"github.com/harunnryd/sampark/pkg/redact"
	"github.com/harunnryd/sampark/pkg/sheets"
	"github.com/harunnryd/sampark/pkg/transports"
)

// CallRecord is the row written when a call is placed.
type CallRecord struct {
	CallSID    string
	Phone      string
	BatchID    string
	CampaignID string
	StartedAt  time.Time
}

// Event is one spoken line of a call.
type Event struct {
	CallSID string
	Role    string
	Message string
	State   string
	At      time.Time
}

const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

// CallStore is the relational sink for call records.
type CallStore interface {
	InsertCall(ctx context.Context, rec CallRecord) error
	CompleteCall(ctx context.Context, callSID, result string, endedAt time.Time) error
	InsertEvent(ctx context.Context, ev Event) error
}

type Config struct {
	Tracker sheets.Tracker
	// Calls is optional; nil skips the relational sink.
	Calls   CallStore
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Logger writes the outcome of a call to the external sinks. Callers make
// sure Finalize runs once per call; the session store enforces that.
type Logger struct {
	tracker sheets.Tracker
	calls   CallStore
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg Config) *Logger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Logger{
		tracker: cfg.Tracker,
		calls:   cfg.Calls,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Started records a placed call.
func (l *Logger) Started(ctx context.Context, s dialog.Session) {
	if l == nil || l.calls == nil {
		return
	}
	err := l.with(ctx, func(ctx context.Context) error {
		return l.calls.InsertCall(ctx, CallRecord{
			CallSID:    s.CallSID,
			Phone:      s.Phone,
			BatchID:    s.BatchID,
			CampaignID: s.CampaignID,
			StartedAt:  s.StartedAt,
		})
	})
	if err != nil {
		l.logger.Warn("call_record_insert_failed", "call_sid", s.CallSID, "error", err)
	}
}

// Finalize writes the call log row, marks the bulk row completed and closes
// the call record. Every sink is attempted; failures are joined.
func (l *Logger) Finalize(ctx context.Context, s dialog.Session) error {
	if l == nil {
		return nil
	}
	l.metrics.Finalized(s.Result)
	var errs []error
	if l.tracker != nil {
		if err := l.with(ctx, func(ctx context.Context) error {
			return l.tracker.AppendCallLog(ctx, Row(s))
		}); err != nil {
			errs = append(errs, err)
		}
		if s.BatchID != "" {
			if err := l.with(ctx, func(ctx context.Context) error {
				return l.tracker.MarkBulkByCallSID(ctx, s.CallSID, BulkStatus(s.Result))
			}); err != nil && !errors.Is(err, sheets.ErrRowNotFound) {
				errs = append(errs, err)
			}
		}
	}
	if l.calls != nil {
		if err := l.with(ctx, func(ctx context.Context) error {
			return l.calls.CompleteCall(ctx, s.CallSID, s.Result, s.EndedAt)
		}); err != nil && !errorsx.HasReason(err, errorsx.ReasonNotFound) {
			errs = append(errs, errorsx.Wrap(err, errorsx.ReasonStoreQuery))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		l.logger.Error("call_log_failed", "call_sid", s.CallSID, "phone", redact.Phone(s.Phone), "error", err)
		return err
	}
	l.logger.Info("call_logged",
		"call_sid", s.CallSID,
		"phone", redact.Phone(s.Phone),
		"result", s.Result,
		"duration_s", int(s.Duration().Seconds()),
	)
	return nil
}

func (l *Logger) with(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	return fn(ctx)
}

// BulkStatus is the Bulk_Calls status for a call that ended with result.
func BulkStatus(result string) string {
	switch result {
	case transports.EndBusy, transports.EndNoAnswer, transports.EndFailed:
		return sheets.StatusFailed
	default:
		return sheets.StatusCompleted
	}
}

// Row renders a finalized session as a Call_Logs row.
func Row(s dialog.Session) sheets.CallLogRow {
	return sheets.CallLogRow{
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		CallSID:      s.CallSID,
		Phone:        s.Phone,
		AgentTexts:   s.AgentTexts,
		UserTexts:    s.UserTexts,
		Result:       s.Result,
		Duration:     s.Duration(),
		Confidence:   s.Confidence,
		CallbackTime: s.CallbackTime,
		Transcript:   s.Transcript,
	}
}
