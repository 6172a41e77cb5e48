package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tradejoy/internal/core"
	"tradejoy/internal/log"
	ports "tradejoy/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultRowCacheTTL = 30 * time.Second

// Client mirrors ledger transactions into one sheet, one row per
// transaction: id, date, kind, category, description, amount.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// id -> 1-based row number, refreshed from column A
	mu                 sync.Mutex
	rowCache           map[int64]int
	rowCount           int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Options configures a Client. Credentials come from CredentialsJSON,
// CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS, in that order.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	creds, err := loadCredentials(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "sheet", opts.SheetName)
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

// NewWithService wraps an existing service, for tests and custom transports.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Transactions"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		logger:             logger,
		cacheValidDuration: defaultRowCacheTTL,
	}
}

func loadCredentials(ctx context.Context, opts Options, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Append implements ports.TransactionWriter
func (c *Client) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows, _, err := c.rows(ctx)
	if err != nil {
		return "", err
	}
	if row, ok := rows[tx.ID]; ok {
		c.logger.InfoContext(ctx, "Transaction already mirrored", log.FieldTxID, tx.ID, "row", row)
		return c.rowRange(row), nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheetName+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	c.invalidate()

	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// Delete implements ports.TransactionDeleter. The row is cleared rather than
// removed so other row references stay valid.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows, _, err := c.rows(ctx)
	if err != nil {
		return err
	}
	row, ok := rows[id]
	if !ok {
		c.logger.WarnContext(ctx, "Transaction not found in sheet, nothing to clear", log.FieldTxID, id)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rowRange(row), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row %d in sheet %s: %w", row, c.sheetName, err)
	}
	c.invalidate()
	return nil
}

// IDs implements ports.IDLister
func (c *Client) IDs(ctx context.Context) (map[int64]struct{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rows, _, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]struct{}, len(rows))
	for id := range rows {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// rows returns the id -> row index, reading column A when the cache expired.
func (c *Client) rows(ctx context.Context) (map[int64]int, int, error) {
	c.mu.Lock()
	if c.rowCache != nil && time.Now().Before(c.cacheExpiresAt) {
		rows, n := c.rowCache, c.rowCount
		c.mu.Unlock()
		return rows, n, nil
	}
	c.mu.Unlock()

	rng := c.sheetName + "!A:A"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := indexRows(resp.Values)

	c.mu.Lock()
	c.rowCache = rows
	c.rowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return rows, len(resp.Values), nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.rowCache = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:F%d", c.sheetName, row, row)
}
