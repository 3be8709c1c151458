package postgres

import (
	"context"
	"time"

	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/errorsx"
)

// CallRepository implements calllog.CallStore on the calls and call_events tables.
type CallRepository struct {
	db dbtx
}

func (s *Store) Calls() *CallRepository {
	return &CallRepository{db: s.db}
}

func (r *CallRepository) InsertCall(ctx context.Context, rec calllog.CallRecord) error {
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO calls (call_sid, phone, batch_id, campaign_id, status, started_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), 'initiated', $5)
		ON CONFLICT (call_sid) DO NOTHING`,
		rec.CallSID, rec.Phone, rec.BatchID, rec.CampaignID, started.UTC(),
	)
	if err != nil {
		return errorsx.Errorf(errorsx.ReasonStoreQuery, "insert call: %w", err)
	}
	return nil
}

func (r *CallRepository) CompleteCall(ctx context.Context, callSID, result string, endedAt time.Time) error {
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE calls SET status = 'completed', result = $2, ended_at = $3
		WHERE call_sid = $1`,
		callSID, result, endedAt.UTC(),
	)
	if err != nil {
		return errorsx.Errorf(errorsx.ReasonStoreQuery, "complete call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errorsx.NotFound("call not found")
	}
	return nil
}

func (r *CallRepository) InsertEvent(ctx context.Context, ev calllog.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO call_events (call_sid, role, message, state, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.CallSID, ev.Role, ev.Message, ev.State, at.UTC(),
	)
	if err != nil {
		return errorsx.Errorf(errorsx.ReasonStoreQuery, "insert call event: %w", err)
	}
	return nil
}
