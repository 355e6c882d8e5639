package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	ports "chitieu/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors entries into a Google Sheet. Column A carries the entry ID
// so later updates and deletes can address the row.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ ports.EntryUpserter = (*Client)(nil)
	_ ports.EntryDeleter  = (*Client)(nil)
	_ ports.ExportSink    = (*Client)(nil)
)

// Options configure the sheet client. Exactly one of CredentialsJSON or
// CredentialsFile must be set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Entries"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials, inline JSON or a key file.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		credentialsJSON, err = os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Upsert rewrites the entry's row if column A already carries its ID, and
// appends a new row otherwise.
func (c *Client) Upsert(ctx context.Context, row ports.ExportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rowIndex, total, err := c.findRow(ctx, row.EntryID)
	if err != nil {
		return "", err
	}
	if rowIndex == 0 {
		// Append after the last occupied row.
		rowIndex = total + 1
	}

	rng := fmt.Sprintf("%s!A%d:F%d", c.sheetName, rowIndex, rowIndex)
	vr := &gsheet.ValueRange{Values: [][]any{exportValues(row)}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update row in sheet %s: %w", c.sheetName, err)
	}

	return rng, nil
}

// Delete clears the entry's row. A missing row is not an error: the entry
// may never have been exported.
func (c *Client) Delete(ctx context.Context, entryID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rowIndex, _, err := c.findRow(ctx, entryID)
	if err != nil {
		return err
	}
	if rowIndex == 0 {
		slog.InfoContext(ctx, "Entry not present in sheet, nothing to delete", "id", entryID)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:F%d", c.sheetName, rowIndex, rowIndex)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row in sheet %s: %w", c.sheetName, err)
	}
	return nil
}

// findRow scans column A for the entry ID. It returns the 1-based row index
// (0 when absent) and the number of occupied rows.
func (c *Client) findRow(ctx context.Context, entryID int64) (int, int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read column A of %s: %w", c.sheetName, err)
	}
	return locateEntry(resp.Values, entryID), len(resp.Values), nil
}

// locateEntry returns the 1-based index of the row whose first cell holds
// the ID, or 0 when no row matches.
func locateEntry(values [][]any, entryID int64) int {
	want := strconv.FormatInt(entryID, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// exportValues lays out a row as [ID, Owner, Date, Description, Amount, Category].
func exportValues(row ports.ExportRow) []any {
	return []any{
		row.EntryID,
		row.Owner,
		row.Date.Format("2006-01-02"),
		row.Description,
		row.AmountDong,
		row.Category,
	}
}
