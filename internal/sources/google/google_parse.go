package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
)

// Header names of the petty-cash sheet. Column order is free.
const (
	colID       = "ID"
	colDate     = "Date"
	colProject  = "Project"
	colVendor   = "Vendor"
	colDesc     = "Description"
	colAmount   = "Amount"
	colCurrency = "Currency"
	colRate     = "Rate"
	colCategory = "Category"
	colReceipt  = "Receipt"
	colLinked   = "Ledger Ref"
)

var sheetDateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006"}

// parsePettyCash converts a values matrix into incidental expenses. The
// first row holds headers; Date, Project and Amount are required. Blank
// rows are skipped, malformed ones fail the whole read so that a broken
// sheet is never silently under-counted. A blank Currency cell means base.
func parsePettyCash(values [][]interface{}, base string) ([]core.Transaction, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	col := func(name string) int { return indexOf(headers, name) }

	var missing []string
	for _, required := range []string{colDate, colProject, colAmount} {
		if col(required) == -1 {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected petty cash header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []core.Transaction
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		get := func(name string) string { return safeGet(row, col(name)) }
		if strings.Join(row, "") == "" {
			continue
		}
		line := i + 1

		date, err := parseSheetDate(get(colDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		amount, err := core.ParseAmount(get(colAmount))
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %q: %w", line, get(colAmount), err)
		}

		id := get(colID)
		if id == "" {
			id = fmt.Sprintf("pettycash-%d", line)
		}
		currency := strings.ToUpper(get(colCurrency))
		if currency == "" {
			currency = base
		}
		tx := core.Transaction{
			ID:              id,
			Kind:            core.Expense,
			Source:          core.SourceIncidental,
			Date:            date,
			Description:     get(colDesc),
			Vendor:          get(colVendor),
			Amount:          amount,
			Currency:        currency,
			CategoryCode:    get(colCategory),
			ProjectID:       get(colProject),
			DocumentType:    "petty_cash",
			LinkedPrimaryID: get(colLinked),
		}
		if raw := get(colRate); raw != "" {
			rate, err := core.ParseRate(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: rate %q: %w", line, raw, err)
			}
			tx.LockedRate = decimal.NewNullDecimal(rate)
		}
		if url := get(colReceipt); url != "" {
			tx.Attachments = []core.Attachment{{ID: id + "-receipt", Name: "receipt", URL: url}}
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func parseSheetDate(s string) (time.Time, error) {
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: %w", s, core.ErrMissingDate)
}
