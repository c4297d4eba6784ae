package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"tally/internal/core"
	ports "tally/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends budget history rows to a Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	historySheet  string
}

// Ensure interface conformance
var _ ports.HistoryWriter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	HistorySheet       string // defaults to "Budget History"
	ServiceAccountJSON string
	ServiceAccountFile string // falls back to GOOGLE_APPLICATION_CREDENTIALS
}

const defaultHistorySheet = "Budget History"

// HistoryHeader is the expected first row of the history sheet.
var HistoryHeader = []any{"Budget ID", "Category", "Period", "Budget", "Spent", "Used %"}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheet := strings.TrimSpace(cfg.HistorySheet)
	if sheet == "" {
		sheet = defaultHistorySheet
	}
	slog.InfoContext(ctx, "Google Sheets history export ready", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, historySheet: sheet}, nil
}

// credentials resolves service account JSON from inline config, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.ServiceAccountJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// AppendHistory appends one row per rollover below the existing rows.
func (c *Client) AppendHistory(ctx context.Context, rollovers []core.Rollover) error {
	if len(rollovers) == 0 {
		return nil
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("'%s'!A:F", c.historySheet)
	vr := &gsheet.ValueRange{Values: historyRows(rollovers)}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append history to %s: %w", c.historySheet, err)
	}
	slog.DebugContext(ctx, "Budget history exported", "rows", len(rollovers), "sheet", c.historySheet)
	return nil
}

// historyRows renders rollovers in HistoryHeader order. Amounts are written
// as decimal strings so USER_ENTERED parses them without float rounding.
func historyRows(rollovers []core.Rollover) [][]any {
	rows := make([][]any, 0, len(rollovers))
	for _, r := range rollovers {
		e := r.Entry
		rows = append(rows, []any{
			r.BudgetID,
			r.Category,
			fmt.Sprintf("%04d-%02d", e.Year, e.Month+1),
			e.Amount.String(),
			e.Spent.String(),
			e.Spent.Ratio(e.Amount).Shift(2).Round(1).String(),
		})
	}
	return rows
}
