// Package google exports month summaries to a Google Sheets spreadsheet
// using service account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"bilancio/internal/core"
	ports "bilancio/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
}

var _ ports.SummaryWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SUMMARY_SHEET_NAME (default "Summaries").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	summarySheet := strings.TrimSpace(os.Getenv("GOOGLE_SUMMARY_SHEET_NAME"))
	if summarySheet == "" {
		summarySheet = "Summaries"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  summarySheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteSummary upserts one row per (owner, month). The key lives in
// column A as "owner|month"; an existing key is updated in place so
// recomputed summaries replace stale ones instead of piling up.
func (c *Client) WriteSummary(ctx context.Context, ownerID int64, s core.MonthSummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if s.Month.IsZero() {
		return "", core.ErrInvalidMonth
	}

	rowKey := fmt.Sprintf("%d|%s", ownerID, s.Month)

	rng := fmt.Sprintf("%s!A:A", c.summarySheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read summary keys from %s: %w", c.summarySheet, err)
	}

	targetRow := len(resp.Values) + 1
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == rowKey {
			targetRow = i + 1
			break
		}
	}

	values := summaryRow(rowKey, ownerID, s)
	dataRange := fmt.Sprintf("%s!A%d:M%d", c.summarySheet, targetRow, targetRow)
	vr := &gsheet.ValueRange{Values: [][]any{values}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write summary row in %s: %w", c.summarySheet, err)
	}

	slog.InfoContext(ctx, "Wrote month summary to sheet",
		"owner_id", ownerID,
		"month", s.Month.String(),
		"sheet", c.summarySheet,
		"row", targetRow)

	return dataRange, nil
}

// summaryRow flattens a summary into spreadsheet cells. Money values are
// written as decimal units so the sheet stays human-readable.
func summaryRow(rowKey string, ownerID int64, s core.MonthSummary) []any {
	return []any{
		rowKey,
		ownerID,
		s.Month.String(),
		units(s.TotalIncome),
		units(s.ExpectedIncome),
		units(s.TotalAllotted),
		units(s.TotalSpent),
		units(s.RemainingToAssign),
		units(s.Unassigned),
		units(s.FlexFund),
		unitsPtr(s.BankBalance),
		unitsPtr(s.BankDifference),
		strconv.FormatBool(s.BankMatch),
	}
}

func units(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}

func unitsPtr(m *core.Money) any {
	if m == nil {
		return ""
	}
	return units(*m)
}
