package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
)

// Match pairs an incidental expense with the ledger record it duplicates.
type Match struct {
	Incidental Entry
	Primary    Entry // zero when Linked points outside the fetched window
	Linked     bool  // matched through LinkedPrimaryID rather than the heuristic
	Candidates int   // ledger records that qualified under the heuristic
}

// projectExpenses returns project's ledger expenses plus the incidental
// expenses that do not duplicate one of them, normalized and date ordered.
func projectExpenses(project core.Project, primary, incidental []core.Transaction, n *currency.Normalizer, tolerance decimal.Decimal, rec *recorder) []Entry {
	own := func(txs []core.Transaction, src core.Source) []Entry {
		var out []Entry
		for _, tx := range txs {
			if tx.Kind != core.Expense || tx.ProjectID == "" || tx.ProjectID != project.ID {
				continue
			}
			if tx.Source == "" {
				tx.Source = src
			}
			out = append(out, normalize(n, tx, rec))
		}
		sortEntries(out)
		return out
	}

	ledger := own(primary, core.SourceLedger)
	petty := own(incidental, core.SourceIncidental)

	kept, matches := dedupeIncidental(ledger, petty, tolerance)
	for _, m := range matches {
		if m.Linked || rec == nil {
			continue
		}
		msg := fmt.Sprintf("dropped as duplicate of %s (%q, %s vs %s)",
			m.Primary.ID, labelOf(m.Incidental), m.Incidental.Base, m.Primary.Base)
		if m.Candidates > 1 {
			msg += fmt.Sprintf("; %d ledger records qualified, closest amount chosen", m.Candidates)
		}
		rec.record(Diagnostic{
			Kind:          DiagDuplicateExpense,
			ProjectID:     project.ID,
			TransactionID: m.Incidental.ID,
			Message:       msg,
		})
	}

	out := append(ledger, kept...)
	sortEntries(out)
	return out
}

// dedupeIncidental drops incidental entries that record the same real-world
// expense as a ledger entry. An explicit LinkedPrimaryID always wins. Without
// one, an incidental entry duplicates a ledger entry of the same month whose
// label contains (or is contained in) its label and whose base amount is
// within tolerance. Each ledger entry absorbs at most one incidental entry;
// among several candidates the closest amount wins, then the earliest.
func dedupeIncidental(primary, incidental []Entry, tolerance decimal.Decimal) (kept []Entry, matches []Match) {
	byID := make(map[string]Entry, len(primary))
	for _, p := range primary {
		byID[p.ID] = p
	}
	absorbed := make(map[string]bool)

	for _, in := range incidental {
		if in.LinkedPrimaryID != "" {
			p, ok := byID[in.LinkedPrimaryID]
			if ok {
				absorbed[p.ID] = true
			}
			matches = append(matches, Match{Incidental: in, Primary: p, Linked: true})
			continue
		}

		var (
			best       Entry
			bestDiff   decimal.Decimal
			candidates int
		)
		month := fiscal.MonthOf(in.Date)
		for _, p := range primary {
			if absorbed[p.ID] || fiscal.MonthOf(p.Date) != month {
				continue
			}
			if !labelsMatch(labelOf(p), labelOf(in)) {
				continue
			}
			diff := p.Base.Sub(in.Base).Abs()
			if diff.GreaterThan(tolerance) {
				continue
			}
			candidates++
			// primary is date ordered, so ties keep the earliest record.
			if candidates == 1 || diff.LessThan(bestDiff) {
				best, bestDiff = p, diff
			}
		}
		if candidates == 0 {
			kept = append(kept, in)
			continue
		}
		absorbed[best.ID] = true
		matches = append(matches, Match{Incidental: in, Primary: best, Candidates: candidates})
	}
	return kept, matches
}

func labelOf(e Entry) string {
	if l := strings.TrimSpace(e.Vendor); l != "" {
		return strings.ToLower(l)
	}
	return strings.ToLower(strings.TrimSpace(e.Description))
}

func labelsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
