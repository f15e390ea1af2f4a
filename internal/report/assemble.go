package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
)

// Figures is one row of a profit-and-loss report, in base currency.
type Figures struct {
	Income        decimal.Decimal `json:"income"`
	ManagementFee decimal.Decimal `json:"management_fee"`
	Expense       decimal.Decimal `json:"expense"`
	Profit        decimal.Decimal `json:"profit"`
}

// Add returns the field-wise sum of f and o.
func (f Figures) Add(o Figures) Figures {
	return Figures{
		Income:        f.Income.Add(o.Income),
		ManagementFee: f.ManagementFee.Add(o.ManagementFee),
		Expense:       f.Expense.Add(o.Expense),
		Profit:        f.Profit.Add(o.Profit),
	}
}

func zeroFigures() Figures {
	return Figures{Income: decimal.Zero, ManagementFee: decimal.Zero, Expense: decimal.Zero, Profit: decimal.Zero}
}

type MonthBucket struct {
	Month fiscal.Month `json:"month"`
	Figures
}

// Report is the fiscal-year profit and loss of one project.
type Report struct {
	ProjectID    string          `json:"project_id"`
	ProjectName  string          `json:"project_name"`
	FiscalYear   fiscal.Year     `json:"fiscal_year"`
	AsOf         time.Time       `json:"as_of"`
	BaseCurrency string          `json:"base_currency"`
	FeePercent   decimal.Decimal `json:"fee_percent"`
	IsManagement bool            `json:"is_management"`
	Months       [12]MonthBucket `json:"months"`
	Totals       Figures         `json:"totals"`
	// Allocations lists the fee income behind the management project's
	// income; empty for every other project.
	Allocations []Allocation `json:"-"`
}

// bucket fills the 12 months of fy from recognized income and expenses.
// The fee is the project's own rate applied to the month's income.
func bucket(project core.Project, fy fiscal.Year, income, expenses []Entry) [12]MonthBucket {
	in := byMonth(income)
	out := byMonth(expenses)

	var rows [12]MonthBucket
	for i, m := range fy.Months() {
		f := zeroFigures()
		if t, ok := in[m]; ok {
			f.Income = t.Amount
		}
		if t, ok := out[m]; ok {
			f.Expense = t.Amount
		}
		f.ManagementFee = project.FeeOn(f.Income)
		f.Profit = f.Income.Sub(f.ManagementFee).Sub(f.Expense)
		rows[i] = MonthBucket{Month: m, Figures: f}
	}
	return rows
}

// assemble builds the report around rows. Totals are the sum of the rows
// as given and are never derived from the underlying transactions.
func assemble(project core.Project, fy fiscal.Year, rows [12]MonthBucket) *Report {
	totals := zeroFigures()
	for _, r := range rows {
		totals = totals.Add(r.Figures)
	}
	return &Report{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		FiscalYear:  fy,
		FeePercent:  project.FeePercent,
		Months:      rows,
		Totals:      totals,
	}
}

// Month returns the bucket for m, or false when m is outside the year.
func (r *Report) Month(m fiscal.Month) (MonthBucket, bool) {
	i := r.FiscalYear.Index(m)
	if i < 0 {
		return MonthBucket{}, false
	}
	return r.Months[i], true
}
