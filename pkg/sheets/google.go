package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/resilience"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type GoogleConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	BulkSheet       string `mapstructure:"bulk_sheet"`
	LogSheet        string `mapstructure:"log_sheet"`
}

func (c GoogleConfig) withDefaults() GoogleConfig {
	if c.BulkSheet == "" {
		c.BulkSheet = "Bulk_Calls"
	}
	if c.LogSheet == "" {
		c.LogSheet = "Call_Logs"
	}
	return c
}

type valuesClient interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// GoogleTracker writes to a Google spreadsheet through the Sheets v4 API.
type GoogleTracker struct {
	cfg    GoogleConfig
	values valuesClient
	retry  resilience.RetryPolicy
}

func NewGoogleTracker(ctx context.Context, cfg GoogleConfig, retry resilience.RetryPolicy) (*GoogleTracker, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errorsx.Validation("sheets.settings.spreadsheet_id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonSheetUpdate)
	}
	return &GoogleTracker{cfg: cfg, values: serviceValues{srv: srv}, retry: retry}, nil
}

func (g *GoogleTracker) Name() string { return "google_sheets" }

func (g *GoogleTracker) MarkBulk(ctx context.Context, phone, batchID, status, callSID string) error {
	rows, err := g.bulkRows(ctx)
	if err != nil {
		return err
	}
	clean := NormalizePhone(phone)
	for i := 1; i < len(rows); i++ {
		if NormalizePhone(cell(rows[i], 0)) != clean || cell(rows[i], 1) != batchID {
			continue
		}
		sid := callSID
		if sid == "" {
			sid = cell(rows[i], 3)
		}
		rng := fmt.Sprintf("%s!C%d:D%d", g.cfg.BulkSheet, i+1, i+1)
		return g.do(ctx, func(ctx context.Context) error {
			return g.values.Update(ctx, g.cfg.SpreadsheetID, rng, [][]any{{status, sid}})
		})
	}
	return ErrRowNotFound
}

func (g *GoogleTracker) MarkBulkByCallSID(ctx context.Context, callSID, status string) error {
	rows, err := g.bulkRows(ctx)
	if err != nil {
		return err
	}
	for i := 1; i < len(rows); i++ {
		if callSID == "" || cell(rows[i], 3) != callSID {
			continue
		}
		rng := fmt.Sprintf("%s!C%d", g.cfg.BulkSheet, i+1)
		return g.do(ctx, func(ctx context.Context) error {
			return g.values.Update(ctx, g.cfg.SpreadsheetID, rng, [][]any{{status}})
		})
	}
	return ErrRowNotFound
}

func (g *GoogleTracker) AppendCallLog(ctx context.Context, row CallLogRow) error {
	rng := g.cfg.LogSheet + "!A:K"
	return g.do(ctx, func(ctx context.Context) error {
		return g.values.Append(ctx, g.cfg.SpreadsheetID, rng, [][]any{row.Values()})
	})
}

func (g *GoogleTracker) bulkRows(ctx context.Context) ([][]any, error) {
	var rows [][]any
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = g.values.Get(ctx, g.cfg.SpreadsheetID, g.cfg.BulkSheet+"!A:D")
		return err
	})
	return rows, err
}

func (g *GoogleTracker) do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.retry.Do(ctx, fn); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSheetUpdate)
	}
	return nil
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

type serviceValues struct {
	srv *gsheets.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := s.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

func (s serviceValues) Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := s.srv.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
