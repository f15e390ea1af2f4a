package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
)

// TransactionDetail is one row behind a monthly report figure.
type TransactionDetail struct {
	ID          string      `json:"id"`
	Date        time.Time   `json:"date"`
	Description string      `json:"description"`
	Vendor      string      `json:"vendor,omitempty"`
	Kind        core.Kind   `json:"kind"`
	Source      core.Source `json:"source"`
	ProjectID   string      `json:"project_id"`

	CategoryCode     string `json:"category_code"`
	CategoryLabel    string `json:"category_label"`
	CategoryResolved bool   `json:"category_resolved"`

	Amount       decimal.Decimal     `json:"amount"` // base currency
	NativeAmount decimal.Decimal     `json:"native_amount"`
	Currency     string              `json:"currency"`
	Rate         decimal.Decimal     `json:"rate"`
	RateSource   currency.RateSource `json:"rate_source"`

	DocumentType   string            `json:"document_type,omitempty"`
	DocumentNumber string            `json:"document_number,omitempty"`
	Attachments    []core.Attachment `json:"attachments"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	ContributorID  string            `json:"contributor_id,omitempty"`
}

// resolveCategory looks code up in accounts by exact match. Unresolved
// codes fall back to the code itself.
func resolveCategory(accounts map[string]string, code string) (string, bool) {
	if label, ok := accounts[code]; ok && label != "" {
		return label, true
	}
	return code, false
}

// details turns entries into drill-down rows ordered by date, then id.
func details(entries []Entry, accounts map[string]string, rec *recorder) []TransactionDetail {
	sorted := append([]Entry(nil), entries...)
	sortEntries(sorted)

	out := make([]TransactionDetail, 0, len(sorted))
	for _, e := range sorted {
		label, ok := resolveCategory(accounts, e.CategoryCode)
		if !ok && e.CategoryCode != "" && rec != nil {
			rec.record(Diagnostic{
				Kind:          DiagUnresolvedCategory,
				ProjectID:     e.ProjectID,
				TransactionID: e.ID,
				Message:       fmt.Sprintf("category %q not in chart of accounts", e.CategoryCode),
			})
		}
		attachments := e.Attachments
		if attachments == nil {
			attachments = []core.Attachment{}
		}
		out = append(out, TransactionDetail{
			ID:               e.ID,
			Date:             e.Date,
			Description:      e.Description,
			Vendor:           e.Vendor,
			Kind:             e.Kind,
			Source:           e.Source,
			ProjectID:        e.ProjectID,
			CategoryCode:     e.CategoryCode,
			CategoryLabel:    label,
			CategoryResolved: ok,
			Amount:           e.Base,
			NativeAmount:     e.Amount,
			Currency:         e.Currency,
			Rate:             e.Rate,
			RateSource:       e.RateSource,
			DocumentType:     e.DocumentType,
			DocumentNumber:   e.DocumentNumber,
			Attachments:      attachments,
			CompletedAt:      e.CompletedAt,
			ContributorID:    e.ContributorID,
		})
	}
	return out
}
