package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
)

// Entry is a transaction after currency normalization.
type Entry struct {
	core.Transaction
	Base       decimal.Decimal // amount in base currency
	Rate       decimal.Decimal
	RateSource currency.RateSource
	// ContributorID names the fee-paying project on management-fee rows.
	ContributorID string
}

// IsRecognized reports whether tx counts as of asOf. Income needs a
// completion date on or before asOf, compared by calendar day. Expenses are
// always recognized.
func IsRecognized(tx core.Transaction, asOf time.Time) bool {
	if tx.Kind != core.Income {
		return true
	}
	if tx.CompletedAt == nil {
		return false
	}
	return !core.Day(*tx.CompletedAt).After(core.Day(asOf))
}

func normalize(n *currency.Normalizer, tx core.Transaction, rec *recorder) Entry {
	conv := n.ToBase(tx)
	if rec != nil {
		switch conv.Source {
		case currency.RateFallback:
			rec.record(Diagnostic{
				Kind:          DiagFallbackRate,
				ProjectID:     tx.ProjectID,
				TransactionID: tx.ID,
				Message:       fmt.Sprintf("no locked rate for %s %s, used fallback rate %s", tx.Amount, tx.Currency, conv.Rate),
			})
		case currency.RateDefault:
			rec.record(Diagnostic{
				Kind:          DiagUnknownCurrency,
				ProjectID:     tx.ProjectID,
				TransactionID: tx.ID,
				Message:       fmt.Sprintf("no locked or fallback rate for %s, amount %s taken at rate 1", tx.Currency, tx.Amount),
			})
		}
	}
	return Entry{Transaction: tx, Base: conv.Amount, Rate: conv.Rate, RateSource: conv.Source}
}

// RecognizedIncome returns project's income from txs that is recognized as
// of asOf, normalized to base currency and ordered by date. It is the one
// derivation of recognized income shared by a project's own report and the
// management-fee allocation.
func RecognizedIncome(project core.Project, txs []core.Transaction, n *currency.Normalizer, asOf time.Time) []Entry {
	return recognizedIncome(project, txs, n, asOf, nil)
}

func recognizedIncome(project core.Project, txs []core.Transaction, n *currency.Normalizer, asOf time.Time, rec *recorder) []Entry {
	var out []Entry
	for _, tx := range txs {
		if tx.Kind != core.Income || tx.ProjectID == "" || tx.ProjectID != project.ID {
			continue
		}
		if !IsRecognized(tx, asOf) {
			continue
		}
		out = append(out, normalize(n, tx, rec))
	}
	sortEntries(out)
	return out
}

// monthTotal is the recognized amount of one project in one month.
type monthTotal struct {
	Amount  decimal.Decimal
	Latest  time.Time // date of the latest contributing entry
	Entries []Entry
}

// byMonth buckets entries by the "YYYY-MM" of their date.
func byMonth(entries []Entry) map[fiscal.Month]*monthTotal {
	out := make(map[fiscal.Month]*monthTotal)
	for _, e := range entries {
		m := fiscal.MonthOf(e.Date)
		mt, ok := out[m]
		if !ok {
			mt = &monthTotal{Amount: decimal.Zero}
			out[m] = mt
		}
		mt.Amount = mt.Amount.Add(e.Base)
		if e.Date.After(mt.Latest) {
			mt.Latest = e.Date
		}
		mt.Entries = append(mt.Entries, e)
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}
