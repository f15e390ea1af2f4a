package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
)

// Allocation is the fee one contributing project owes the management
// project for one fiscal month.
type Allocation struct {
	ContributorID   string
	ContributorName string
	Month           fiscal.Month
	Income          decimal.Decimal // contributor's recognized income in Month
	FeePercent      decimal.Decimal // contributor's own rate
	Fee             decimal.Decimal
	Date            time.Time
}

// ID is stable across runs so drill-down rows can be referenced.
func (a Allocation) ID() string {
	return fmt.Sprintf("fee:%s:%s", a.ContributorID, a.Month)
}

// entry renders the allocation as base-currency income of mgmt.
func (a Allocation) entry(mgmt core.Project, base, categoryCode string) Entry {
	tx := core.Transaction{
		ID:           a.ID(),
		Kind:         core.Income,
		Source:       core.SourceManagementFee,
		Date:         a.Date,
		Description:  fmt.Sprintf("Management fee %s%% of %s income %s", a.FeePercent, a.ContributorName, a.Month),
		Amount:       a.Fee,
		Currency:     base,
		CategoryCode: categoryCode,
		ProjectID:    mgmt.ID,
		CompletedAt:  &a.Date,
	}
	return Entry{
		Transaction:   tx,
		Base:          a.Fee,
		Rate:          decimal.NewFromInt(1),
		RateSource:    currency.RateBase,
		ContributorID: a.ContributorID,
	}
}

// collectsFees reports whether mgmt is the project that receives its
// company's fees. A company should have at most one management project;
// when it has several, the lowest id collects and the rest are reported.
func collectsFees(mgmt core.Project, all []core.Project, managementCode string, rec *recorder) bool {
	var ids []string
	for _, p := range all {
		if p.CompanyID == mgmt.CompanyID && p.IsManagement(managementCode) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) <= 1 {
		return true
	}
	sort.Strings(ids)
	msg := fmt.Sprintf("company %s has %d management projects (%s); fees go to %s",
		mgmt.CompanyID, len(ids), strings.Join(ids, ", "), ids[0])
	rec.record(Diagnostic{
		Kind:      DiagMultipleManagement,
		ProjectID: mgmt.ID,
		Message:   msg,
	})
	return ids[0] == mgmt.ID
}

// contributorsOf returns the projects that pay mgmt a fee: same company,
// positive fee percent, and not a management project themselves.
func contributorsOf(mgmt core.Project, all []core.Project, managementCode string) []core.Project {
	var out []core.Project
	for _, p := range all {
		if p.ID == mgmt.ID || p.CompanyID != mgmt.CompanyID {
			continue
		}
		if !p.PaysFee() || p.IsManagement(managementCode) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type feeInput struct {
	contributors []core.Project
	income       []core.Transaction // every project's income in the window
	window       []fiscal.Month
	normalizer   *currency.Normalizer
	asOf         time.Time
	limit        int
}

// allocateFees derives every contributor's recognized income independently
// and returns one allocation per (contributor, month) with positive income.
// Allocations are ordered by month, then contributor.
func allocateFees(ctx context.Context, in feeInput, rec *recorder) ([]Allocation, error) {
	inWindow := make(map[fiscal.Month]bool, len(in.window))
	for _, m := range in.window {
		inWindow[m] = true
	}

	perContributor := make([][]Allocation, len(in.contributors))
	g, ctx := errgroup.WithContext(ctx)
	if in.limit > 0 {
		g.SetLimit(in.limit)
	}
	for i, p := range in.contributors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			months := byMonth(recognizedIncome(p, in.income, in.normalizer, in.asOf, rec))
			var out []Allocation
			for m, total := range months {
				if !inWindow[m] || !total.Amount.IsPositive() {
					continue
				}
				date := total.Latest
				if date.IsZero() {
					_, date = m.DateRange()
				}
				out = append(out, Allocation{
					ContributorID:   p.ID,
					ContributorName: p.Name,
					Month:           m,
					Income:          total.Amount,
					FeePercent:      p.FeePercent,
					Fee:             p.FeeOn(total.Amount),
					Date:            core.Day(date),
				})
			}
			perContributor[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Allocation
	for _, a := range perContributor {
		all = append(all, a...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Month != all[j].Month {
			return all[i].Month.String() < all[j].Month.String()
		}
		return all[i].ContributorID < all[j].ContributorID
	})
	return all, nil
}
