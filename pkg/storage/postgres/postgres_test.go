package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/sampark/pkg/calllog"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type stubDB struct {
	execSQL  []string
	execArgs [][]any
	tag      string
	execErr  error
	row      stubRow
	rowArgs  []any
}

func (s *stubDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	tag := s.tag
	if tag == "" {
		tag = "INSERT 0 1"
	}
	return pgconn.NewCommandTag(tag), nil
}

func (s *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.rowArgs = args
	return s.row
}

func TestMigrationsEmbedded(t *testing.T) {
	fsys, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	data, err := fs.ReadFile(fsys, "00001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(data)
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "CREATE TABLE IF NOT EXISTS campaigns", "CREATE TABLE IF NOT EXISTS calls", "CREATE TABLE IF NOT EXISTS call_events"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}

func TestCampaignCreate(t *testing.T) {
	created := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	db := &stubDB{row: stubRow{values: []any{created}}}
	repo := &CampaignRepository{db: db}

	c, err := repo.Create(context.Background(), campaign.Campaign{
		SourceType:    campaign.SourceText,
		SourcePayload: json.RawMessage(`{"text":"hello world"}`),
		Plan:          campaign.Plan{Name: "n", Script: map[string]dialog.Prompt{"INTRO": {Text: "hi"}}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || !c.CreatedAt.Equal(created) {
		t.Fatalf("unexpected campaign %+v", c)
	}
	if db.rowArgs[0] != c.ID || db.rowArgs[1] != campaign.SourceText {
		t.Fatalf("unexpected args %v", db.rowArgs)
	}
	var plan campaign.Plan
	if err := json.Unmarshal(db.rowArgs[3].([]byte), &plan); err != nil || plan.Script["INTRO"].Text != "hi" {
		t.Fatalf("unexpected stored plan %s: %v", db.rowArgs[3], err)
	}
}

func TestCampaignGet(t *testing.T) {
	plan := []byte(`{"campaignName":"n","language":"gu-IN","script":{"intro":{"text":"hi","end":false}},"meta":{"sourceTextPreview":"x"}}`)
	created := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	db := &stubDB{row: stubRow{values: []any{"c1", "text", nil, plan, created}}}
	repo := &CampaignRepository{db: db}

	c, err := repo.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.ID != "c1" || c.Plan.Name != "n" {
		t.Fatalf("unexpected campaign %+v", c)
	}
	if got := c.Plan.Override()[dialog.StateIntro].Text; got != "hi" {
		t.Fatalf("unexpected intro %q", got)
	}
}

func TestCampaignGetNotFound(t *testing.T) {
	repo := &CampaignRepository{db: &stubDB{row: stubRow{err: pgx.ErrNoRows}}}
	if _, err := repo.Get(context.Background(), "nope"); !errorsx.HasReason(err, errorsx.ReasonNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCallLifecycle(t *testing.T) {
	db := &stubDB{}
	repo := &CallRepository{db: db}
	ctx := context.Background()

	if err := repo.InsertCall(ctx, calllog.CallRecord{CallSID: "CA1", Phone: "+911234567890"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(db.execSQL[0], "'initiated'") {
		t.Fatalf("insert should start calls as initiated: %s", db.execSQL[0])
	}

	db.tag = "UPDATE 1"
	if err := repo.CompleteCall(ctx, "CA1", "TASK_DONE", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if db.execArgs[1][1] != "TASK_DONE" {
		t.Fatalf("unexpected args %v", db.execArgs[1])
	}

	db.tag = "UPDATE 0"
	if err := repo.CompleteCall(ctx, "CA2", "abandoned", time.Now()); !errorsx.HasReason(err, errorsx.ReasonNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCallEventErrorsAreReasoned(t *testing.T) {
	repo := &CallRepository{db: &stubDB{execErr: errors.New("conn reset")}}
	err := repo.InsertEvent(context.Background(), calllog.Event{CallSID: "CA1", Role: calllog.RoleUser, Message: "m", State: "INTRO"})
	if !errorsx.HasReason(err, errorsx.ReasonStoreQuery) {
		t.Fatalf("expected store_query, got %v", err)
	}
}
