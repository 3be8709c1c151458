package sheets

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Bulk_Calls status values.
const (
	StatusCalling   = "Calling"
	StatusFailed    = "Failed"
	StatusCompleted = "Completed"
)

// ErrRowNotFound is returned when no Bulk_Calls row matches.
var ErrRowNotFound = errors.New("bulk row not found")

// Tracker is the spreadsheet sink for bulk progress and finished calls.
type Tracker interface {
	Name() string
	// MarkBulk updates the Bulk_Calls row of (phone, batchID). A non-empty
	// callSID is written alongside the status.
	MarkBulk(ctx context.Context, phone, batchID, status, callSID string) error
	// MarkBulkByCallSID updates the status of the row holding callSID.
	MarkBulkByCallSID(ctx context.Context, callSID, status string) error
	// AppendCallLog adds one Call_Logs row.
	AppendCallLog(ctx context.Context, row CallLogRow) error
}

// CallLogRow is one finished call.
type CallLogRow struct {
	StartedAt    time.Time
	EndedAt      time.Time
	CallSID      string
	Phone        string
	AgentTexts   []string
	UserTexts    []string
	Result       string
	Duration     time.Duration
	Confidence   int
	CallbackTime string
	Transcript   []string
}

// Values renders the row in Call_Logs column order A..K.
func (r CallLogRow) Values() []any {
	result := r.Result
	if result == "" {
		result = "unknown"
	}
	return []any{
		FormatIST(r.StartedAt),
		FormatIST(r.EndedAt),
		r.CallSID,
		r.Phone,
		strings.Join(r.AgentTexts, " | "),
		strings.Join(r.UserTexts, " | "),
		result,
		int(r.Duration / time.Second),
		r.Confidence,
		r.CallbackTime,
		strings.Join(r.Transcript, "\n"),
	}
}

var (
	nonDigits = regexp.MustCompile(`\D`)
	ist       = time.FixedZone("IST", 5*3600+1800)
)

// NormalizePhone keeps digits only and drops a leading 91 country code.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	return strings.TrimPrefix(digits, "91")
}

// FormatIST renders t in India Standard Time, e.g. "16/10/2026, 3:04:05 pm".
func FormatIST(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ist).Format("2/1/2006, 3:04:05 pm")
}
