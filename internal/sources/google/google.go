// Package google reads the petty-cash sheet kept by crews in Google Sheets
// and serves it as the incidental expense source.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
)

const (
	DefaultSheetName = "Petty Cash"
	DefaultCacheTTL  = 5 * time.Minute

	// readTimeout bounds one sheet read. Reads are shared between callers
	// and outlive any single caller's context.
	readTimeout = 30 * time.Second
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string // inline service account key, wins over CredentialsFile
	CredentialsFile string
	CacheTTL        time.Duration
	// BaseCurrency is assumed for rows whose Currency cell is blank.
	BaseCurrency    string
}

// valuesReader fetches a raw A1 range.
type valuesReader interface {
	Values(ctx context.Context, rng string) ([][]interface{}, error)
}

type sheetsReader struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (r sheetsReader) Values(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Client is a sources.TransactionSource over the petty-cash sheet. Sheet
// reads are cached for CacheTTL since every report run reads the full sheet.
type Client struct {
	reader valuesReader
	sheet  string
	base   string
	rows   *cache.LRUCache[string, []core.Transaction]
	logger *log.Logger
}

var _ sources.TransactionSource = (*Client)(nil)

// New creates a client authenticated with a service account key.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.BaseCurrency) == "" {
		return nil, errors.New("missing base currency")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsReader{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg), nil
}

func newClient(r valuesReader, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Client{
		reader: r,
		sheet:  sheet,
		base:   strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency)),
		rows:   cache.NewLRUCache[string, []core.Transaction](1, ttl),
		logger: log.Default(log.ComponentSheets),
	}
}

// Cache exposes the row cache so it can be registered for cleanup.
func (c *Client) Cache() cache.Cleaner { return c.rows }

// newSheetsService initializes a read-only Sheets service from the
// configured service account, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	logger := log.Default(log.ComponentSheets)
	switch {
	case len(credentialsJSON) > 0:
		logger.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", file)
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = raw
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ByDateRange implements sources.TransactionSource.
func (c *Client) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	rng := fmt.Sprintf("%s!A:K", c.sheet)
	all, hit, err := c.rows.GetOrLoad(ctx, rng, func(ctx context.Context) ([]core.Transaction, error) {
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		values, err := c.reader.Values(ctx, rng)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rng, err)
		}
		return parsePettyCash(values, c.base)
	})
	if err != nil {
		return nil, err
	}

	var out []core.Transaction
	for _, tx := range all {
		if sources.InRange(tx.Date, start, end) {
			out = append(out, tx)
		}
	}
	c.logger.DebugContext(ctx, "Petty cash rows read",
		log.FieldSource, core.SourceIncidental,
		"sheet", c.sheet,
		"cached", hit,
		"total", len(all),
		"in_range", len(out))
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
