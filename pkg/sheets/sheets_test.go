package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/sampark/pkg/errorsx"
)

type fakeValues struct {
	rows    [][]any
	updates map[string][][]any
	appends [][]any
	getErr  error
}

func (f *fakeValues) Get(ctx context.Context, id, rng string) ([][]any, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rows, nil
}

func (f *fakeValues) Update(ctx context.Context, id, rng string, values [][]any) error {
	if f.updates == nil {
		f.updates = map[string][][]any{}
	}
	f.updates[rng] = values
	return nil
}

func (f *fakeValues) Append(ctx context.Context, id, rng string, values [][]any) error {
	f.appends = append(f.appends, values...)
	return nil
}

func newFakeTracker(rows [][]any) (*GoogleTracker, *fakeValues) {
	fake := &fakeValues{rows: rows}
	return &GoogleTracker{cfg: GoogleConfig{SpreadsheetID: "sheet"}.withDefaults(), values: fake}, fake
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765-43210": "9876543210",
		"9876543210":      "9876543210",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFormatIST(t *testing.T) {
	ts := time.Date(2026, 10, 16, 9, 34, 5, 0, time.UTC)
	if got := FormatIST(ts); got != "16/10/2026, 3:04:05 pm" {
		t.Fatalf("unexpected format %q", got)
	}
	if FormatIST(time.Time{}) != "" {
		t.Fatalf("zero time should render empty")
	}
}

func TestCallLogRowValues(t *testing.T) {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	row := CallLogRow{
		StartedAt:  start,
		EndedAt:    start.Add(42 * time.Second),
		CallSID:    "CA1",
		Phone:      "9876543210",
		AgentTexts: []string{"a", "b"},
		UserTexts:  []string{"c"},
		Duration:   42 * time.Second,
		Confidence: 90,
		Transcript: []string{"AI: a", "User: c"},
	}
	v := row.Values()
	if len(v) != 11 {
		t.Fatalf("expected 11 columns, got %d", len(v))
	}
	if v[4] != "a | b" || v[6] != "unknown" || v[7] != 42 || v[10] != "AI: a\nUser: c" {
		t.Fatalf("unexpected values %v", v)
	}
}

func TestGoogleTrackerMarkBulkByPhone(t *testing.T) {
	tracker, fake := newFakeTracker([][]any{
		{"Phone", "Batch", "Status", "CallSid"},
		{"+91 98765 43210", "b1", "", ""},
		{"9876543210", "b2", "", "CAold"},
	})
	if err := tracker.MarkBulk(context.Background(), "9876543210", "b2", StatusFailed, ""); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got := fake.updates["Bulk_Calls!C3:D3"]
	if len(got) != 1 || got[0][0] != StatusFailed || got[0][1] != "CAold" {
		t.Fatalf("unexpected update %v", fake.updates)
	}
	if err := tracker.MarkBulk(context.Background(), "111", "b1", StatusCalling, "CA1"); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestGoogleTrackerMarkByCallSID(t *testing.T) {
	tracker, fake := newFakeTracker([][]any{
		{"Phone", "Batch", "Status", "CallSid"},
		{"1", "b", "Calling", "CA7"},
	})
	if err := tracker.MarkBulkByCallSID(context.Background(), "CA7", StatusCompleted); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got := fake.updates["Bulk_Calls!C2"]; len(got) != 1 || got[0][0] != StatusCompleted {
		t.Fatalf("unexpected update %v", fake.updates)
	}
}

func TestGoogleTrackerWrapsErrors(t *testing.T) {
	tracker, fake := newFakeTracker(nil)
	fake.getErr = errors.New("quota")
	err := tracker.MarkBulkByCallSID(context.Background(), "CA1", StatusCompleted)
	if !errorsx.HasReason(err, errorsx.ReasonSheetUpdate) {
		t.Fatalf("expected sheet_update reason, got %v", err)
	}
}

func TestGoogleTrackerAppendCallLog(t *testing.T) {
	tracker, fake := newFakeTracker(nil)
	if err := tracker.AppendCallLog(context.Background(), CallLogRow{CallSID: "CA1", Result: "TASK_DONE"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fake.appends) != 1 || fake.appends[0][2] != "CA1" || fake.appends[0][6] != "TASK_DONE" {
		t.Fatalf("unexpected appends %v", fake.appends)
	}
}

func TestMemoryTracker(t *testing.T) {
	m := NewMemoryTracker()
	ctx := context.Background()
	_ = m.MarkBulk(ctx, "+91 98765 43210", "b1", StatusCalling, "CA1")
	_ = m.MarkBulk(ctx, "9876543210", "b1", StatusCalling, "")
	if err := m.MarkBulkByCallSID(ctx, "CA1", StatusCompleted); err != nil {
		t.Fatalf("mark by sid: %v", err)
	}
	rows := m.BulkRows()
	if len(rows) != 1 || rows[0].Status != StatusCompleted || rows[0].CallSID != "CA1" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if err := m.MarkBulkByCallSID(ctx, "nope", StatusCompleted); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}
