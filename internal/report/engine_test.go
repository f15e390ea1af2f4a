package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources/memory"
)

var (
	fy2425 = fiscal.Year{Start: 2024}
	jan25  = fiscal.Month{Year: 2025, Month: time.January}
	asOf   = core.NewDate(2025, 2, 1)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y, m, dd int) *time.Time {
	t := core.NewDate(y, m, dd)
	return &t
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// fixture builds management project M with contributors A (10%) and B (5%)
// in company c1, plus C (20%) in another company.
func fixture(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	for _, p := range []core.Project{
		{ID: "M", CompanyID: "c1", Name: "Faraway Management", Code: "MGMT"},
		{ID: "A", CompanyID: "c1", Name: "Yacht A", FeePercent: d("10")},
		{ID: "B", CompanyID: "c1", Name: "Yacht B", FeePercent: d("5")},
		{ID: "N", CompanyID: "c1", Name: "No Fee"},
		{ID: "C", CompanyID: "c2", Name: "Other Co", FeePercent: d("20")},
	} {
		if err := s.AddProject(p); err != nil {
			t.Fatal(err)
		}
	}
	for _, tx := range []core.Transaction{
		{ID: "a-inc-1", Kind: core.Income, ProjectID: "A", Date: core.NewDate(2025, 1, 15), Amount: d("600"), Currency: "THB", CategoryCode: "4100", CompletedAt: day(2025, 1, 20)},
		{ID: "a-inc-2", Kind: core.Income, ProjectID: "A", Date: core.NewDate(2025, 1, 5), Amount: d("400"), Currency: "THB", CategoryCode: "4100", CompletedAt: day(2025, 1, 6)},
		{ID: "b-inc-1", Kind: core.Income, ProjectID: "B", Date: core.NewDate(2025, 1, 10), Amount: d("2000"), Currency: "THB", CategoryCode: "4100", CompletedAt: day(2025, 1, 25)},
		{ID: "n-inc-1", Kind: core.Income, ProjectID: "N", Date: core.NewDate(2025, 1, 10), Amount: d("5000"), Currency: "THB", CompletedAt: day(2025, 1, 11)},
		{ID: "c-inc-1", Kind: core.Income, ProjectID: "C", Date: core.NewDate(2025, 1, 10), Amount: d("5000"), Currency: "THB", CompletedAt: day(2025, 1, 11)},
		{ID: "m-inc-1", Kind: core.Income, ProjectID: "M", Date: core.NewDate(2025, 1, 3), Amount: d("50"), Currency: "THB", CategoryCode: "4200", CompletedAt: day(2025, 1, 3)},
		{ID: "a-exp-1", Kind: core.Expense, ProjectID: "A", Date: core.NewDate(2025, 1, 12), Amount: d("150"), Currency: "THB", CategoryCode: "5100", Vendor: "Marina Fuel"},
		{ID: "a-inc-dec", Kind: core.Income, ProjectID: "A", Date: core.NewDate(2024, 12, 1), Amount: d("300"), Currency: "THB", CompletedAt: day(2024, 12, 2)},
		// Not yet delivered as of the fixture date.
		{ID: "a-inc-pending", Kind: core.Income, ProjectID: "A", Date: core.NewDate(2025, 1, 28), Amount: d("999"), Currency: "THB", CompletedAt: day(2025, 3, 1)},
	} {
		if err := s.AddTransaction(tx); err != nil {
			t.Fatalf("%s: %v", tx.ID, err)
		}
	}
	s.SetAccount("4100", "Charter revenue")
	s.SetAccount("5100", "Fuel")
	return s
}

func newTestEngine(set sources.Set, sink DiagnosticSink) *Engine {
	return NewEngine(set, Options{
		Normalizer:      currency.NewNormalizer("THB", map[string]decimal.Decimal{"USD": d("30"), "EUR": d("39.2")}),
		DedupeTolerance: d("1"),
		Clock:           func() time.Time { return asOf },
		Sink:            sink,
	})
}

func TestManagementFeeAllocation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(fixture(t).Sources(), &Collector{})

	m, err := e.GenerateReport(ctx, "M", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsManagement {
		t.Fatal("M should be the management project")
	}
	jan, _ := m.Month(jan25)
	// 50 own income + 10% of 1000 from A + 5% of 2000 from B.
	assertDecimal(t, "M jan income", jan.Income, "250")
	assertDecimal(t, "M jan fee", jan.ManagementFee, "0")
	dec, _ := m.Month(fiscal.Month{Year: 2024, Month: time.December})
	assertDecimal(t, "M dec income", dec.Income, "30")
	assertDecimal(t, "M total income", m.Totals.Income, "280")

	if len(m.Allocations) != 3 {
		t.Fatalf("expected 3 allocations, got %+v", m.Allocations)
	}
	for _, a := range m.Allocations {
		if a.ContributorID == "C" || a.ContributorID == "N" {
			t.Errorf("unexpected contributor %s", a.ContributorID)
		}
	}

	a, err := e.GenerateReport(ctx, "A", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	janA, _ := a.Month(jan25)
	assertDecimal(t, "A jan income", janA.Income, "1000")
	assertDecimal(t, "A jan fee", janA.ManagementFee, "100")
	assertDecimal(t, "A jan expense", janA.Expense, "150")
	assertDecimal(t, "A jan profit", janA.Profit, "750")
}

func TestSecondManagementProjectCollectsNothing(t *testing.T) {
	ctx := context.Background()
	s := fixture(t)
	if err := s.AddProject(core.Project{ID: "M2", CompanyID: "c1", Name: "Second Office", Code: "MGMT"}); err != nil {
		t.Fatal(err)
	}
	diags := &Collector{}
	e := newTestEngine(s.Sources(), diags)

	m, err := e.GenerateReport(ctx, "M", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := e.GenerateReport(ctx, "M2", fy2425)
	if err != nil {
		t.Fatal(err)
	}

	// Same totals as with a single management project.
	assertDecimal(t, "M total income", m.Totals.Income, "280")
	if len(m2.Allocations) != 0 {
		t.Fatalf("M2 should collect no fees, got %+v", m2.Allocations)
	}
	assertDecimal(t, "M2 total income", m2.Totals.Income, "0")

	var reported []string
	for _, diag := range diags.Diagnostics() {
		if diag.Kind == DiagMultipleManagement {
			reported = append(reported, diag.ProjectID)
		}
	}
	if len(reported) != 2 || reported[0] != "M" || reported[1] != "M2" {
		t.Fatalf("expected one multiple_management diagnostic per report, got %v", reported)
	}
}

func TestFeeComplementarityPerMonth(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(fixture(t).Sources(), &Collector{})

	m, err := e.GenerateReport(ctx, "M", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	feeIncome := make(map[fiscal.Month]decimal.Decimal)
	for _, a := range m.Allocations {
		feeIncome[a.Month] = feeIncome[a.Month].Add(a.Fee)
	}

	deductions := make(map[fiscal.Month]decimal.Decimal)
	for _, id := range []string{"A", "B"} {
		r, err := e.GenerateReport(ctx, id, fy2425)
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range r.Months {
			deductions[b.Month] = deductions[b.Month].Add(b.ManagementFee)
		}
	}

	for _, month := range fy2425.Months() {
		if !feeIncome[month].Equal(deductions[month]) {
			t.Errorf("%s: fee income %s != deductions %s", month, feeIncome[month], deductions[month])
		}
	}
}

func TestGenerateReportIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(fixture(t).Sources(), &Collector{})

	first, err := e.GenerateReport(ctx, "M", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.GenerateReport(ctx, "M", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Months {
		a, b := first.Months[i], second.Months[i]
		if a.Month != b.Month || !a.Income.Equal(b.Income) || !a.Expense.Equal(b.Expense) ||
			!a.ManagementFee.Equal(b.ManagementFee) || !a.Profit.Equal(b.Profit) {
			t.Fatalf("bucket %d differs: %+v vs %+v", i, a, b)
		}
	}
	if !first.Totals.Profit.Equal(second.Totals.Profit) {
		t.Fatal("totals differ")
	}
}

func TestReportHasTwelveMonthsInOrder(t *testing.T) {
	e := newTestEngine(fixture(t).Sources(), &Collector{})
	r, err := e.GenerateReport(context.Background(), "N", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	want := fy2425.Months()
	for i, b := range r.Months {
		if b.Month != want[i] {
			t.Fatalf("month %d = %s, want %s", i, b.Month, want[i])
		}
		if b.Income.IsZero() && b.Month == jan25 {
			t.Fatal("january income missing")
		}
	}
	if r.Months[0].Month.String() != "2024-11" || r.Months[11].Month.String() != "2025-10" {
		t.Fatalf("unexpected bounds %s..%s", r.Months[0].Month, r.Months[11].Month)
	}
}

func TestTotalsFollowRows(t *testing.T) {
	p := core.Project{ID: "A", FeePercent: d("10")}
	income := []Entry{{Transaction: core.Transaction{ID: "i", Date: core.NewDate(2025, 1, 1)}, Base: d("1000")}}
	rows := bucket(p, fy2425, income, nil)

	// Corrupt one bucket; the totals must follow the rows, not the data.
	rows[5].Income = d("12345")
	rows[5].Expense = d("5")

	r := assemble(p, fy2425, rows)
	assertDecimal(t, "total income", r.Totals.Income, "13345")
	assertDecimal(t, "total expense", r.Totals.Expense, "5")
	assertDecimal(t, "total fee", r.Totals.ManagementFee, "100")
	assertDecimal(t, "total profit", r.Totals.Profit, "900")
}

func TestIncomeRecognitionByCompletion(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.AddProject(core.Project{ID: "Y", Name: "Yacht"}); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{
		{ID: "never", Kind: core.Income, ProjectID: "Y", Date: core.NewDate(2024, 11, 5), Amount: d("700"), Currency: "THB"},
		{ID: "later", Kind: core.Income, ProjectID: "Y", Date: core.NewDate(2024, 12, 5), Amount: d("300"), Currency: "THB", CompletedAt: day(2025, 3, 10)},
	} {
		if err := s.AddTransaction(tx); err != nil {
			t.Fatal(err)
		}
	}
	e := newTestEngine(s.Sources(), &Collector{})

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"before completion", core.NewDate(2025, 3, 9), "0"},
		{"completion day, late hour", time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC), "300"},
		{"years later", core.NewDate(2030, 1, 1), "300"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := e.GenerateReportAsOf(ctx, "Y", fy2425, tt.asOf)
			if err != nil {
				t.Fatal(err)
			}
			assertDecimal(t, "total income", r.Totals.Income, tt.want)
		})
	}
}

func TestRecognizedIncome(t *testing.T) {
	n := currency.NewNormalizer("THB", nil)
	got := RecognizedIncome(core.Project{ID: "A"}, fixture(t).Transactions(), n, asOf)

	want := []string{"a-inc-dec", "a-inc-2", "a-inc-1"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
		}
	}
	assertDecimal(t, "first base", got[0].Base, "300")
}

func TestLockedRateWinsOverFallback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.AddProject(core.Project{ID: "Y"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTransaction(core.Transaction{
		ID: "usd", Kind: core.Income, ProjectID: "Y", Date: core.NewDate(2025, 1, 2),
		Amount: d("100"), Currency: "USD", LockedRate: decimal.NewNullDecimal(d("36.5")),
		CompletedAt: day(2025, 1, 2),
	}); err != nil {
		t.Fatal(err)
	}
	c := &Collector{}
	r, err := newTestEngine(s.Sources(), c).GenerateReport(ctx, "Y", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "income", r.Totals.Income, "3650")
	if len(c.Diagnostics()) != 0 {
		t.Fatalf("locked rate should not be ambiguous: %+v", c.Diagnostics())
	}
}

func TestAmbiguousRatesAreReported(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.AddProject(core.Project{ID: "Y"}); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{
		{ID: "eur", Kind: core.Expense, ProjectID: "Y", Date: core.NewDate(2025, 1, 2), Amount: d("10"), Currency: "EUR"},
		{ID: "chf", Kind: core.Expense, ProjectID: "Y", Date: core.NewDate(2025, 1, 3), Amount: d("10"), Currency: "CHF"},
	} {
		if err := s.AddTransaction(tx); err != nil {
			t.Fatal(err)
		}
	}
	base := &Collector{}
	request := &Collector{}
	ctx = WithSink(ctx, request)

	r, err := newTestEngine(s.Sources(), base).GenerateReport(ctx, "Y", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "expense", r.Totals.Expense, "402")

	for name, c := range map[string]*Collector{"base": base, "request": request} {
		got := c.Diagnostics()
		if len(got) != 2 {
			t.Fatalf("%s sink: expected 2 diagnostics, got %+v", name, got)
		}
		kinds := map[string]DiagnosticKind{}
		for _, dg := range got {
			kinds[dg.TransactionID] = dg.Kind
		}
		if kinds["eur"] != DiagFallbackRate || kinds["chf"] != DiagUnknownCurrency {
			t.Fatalf("%s sink: unexpected kinds %v", name, kinds)
		}
	}
}

func TestGenerateReportNotFound(t *testing.T) {
	e := newTestEngine(fixture(t).Sources(), &Collector{})
	r, err := e.GenerateReport(context.Background(), "nope", fy2425)
	if !errors.Is(err, core.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if r != nil {
		t.Fatal("no partial report expected")
	}
}

func TestUpstreamFailureAbortsRequest(t *testing.T) {
	boom := errors.New("connection reset")
	failing := sources.TransactionSourceFunc(func(context.Context, time.Time, time.Time) ([]core.Transaction, error) {
		return nil, boom
	})

	tests := []struct {
		name   string
		mutate func(*sources.Set)
		source string
	}{
		{"income", func(s *sources.Set) { s.Income = failing }, "income"},
		{"expenses", func(s *sources.Set) { s.Expenses = failing }, "expenses"},
		{"incidental", func(s *sources.Set) { s.Incidental = failing }, "incidental"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := fixture(t).Sources()
			tt.mutate(&set)
			r, err := newTestEngine(set, &Collector{}).GenerateReport(context.Background(), "M", fy2425)
			if r != nil {
				t.Fatal("no partial report expected")
			}
			if !errors.Is(err, core.ErrUpstream) || !errors.Is(err, boom) {
				t.Fatalf("expected upstream error wrapping cause, got %v", err)
			}
			var ue *core.UpstreamError
			if !errors.As(err, &ue) || ue.Source != tt.source {
				t.Fatalf("expected source %q, got %v", tt.source, err)
			}
		})
	}
}

func TestIncidentalExpensesDeduplicated(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.AddProject(core.Project{ID: "Y"}); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{
		{ID: "l1", Kind: core.Expense, ProjectID: "Y", Date: core.NewDate(2025, 1, 10), Amount: d("500"), Currency: "THB", Vendor: "Phuket Marine Supply"},
		{ID: "l2", Kind: core.Expense, ProjectID: "Y", Date: core.NewDate(2025, 1, 11), Amount: d("80"), Currency: "THB", Vendor: "Ice"},
		{ID: "p1", Kind: core.Expense, Source: core.SourceIncidental, ProjectID: "Y", Date: core.NewDate(2025, 1, 9), Amount: d("500.50"), Currency: "THB", Vendor: "marine supply"},
		{ID: "p2", Kind: core.Expense, Source: core.SourceIncidental, ProjectID: "Y", Date: core.NewDate(2025, 1, 12), Amount: d("999"), Currency: "THB", Vendor: "Ice", LinkedPrimaryID: "l2"},
		{ID: "p3", Kind: core.Expense, Source: core.SourceIncidental, ProjectID: "Y", Date: core.NewDate(2025, 1, 20), Amount: d("40"), Currency: "THB", Vendor: "Taxi"},
	} {
		if err := s.AddTransaction(tx); err != nil {
			t.Fatal(err)
		}
	}
	c := &Collector{}
	e := newTestEngine(s.Sources(), c)

	r, err := e.GenerateReport(ctx, "Y", fy2425)
	if err != nil {
		t.Fatal(err)
	}
	assertDecimal(t, "expense", r.Totals.Expense, "620")

	rows, err := e.DrillDown(ctx, "Y", jan25, core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if len(ids) != 3 || ids[0] != "l1" || ids[1] != "l2" || ids[2] != "p3" {
		t.Fatalf("unexpected drill-down rows %v", ids)
	}

	var dup int
	for _, dg := range c.Diagnostics() {
		if dg.Kind == DiagDuplicateExpense {
			dup++
			if dg.TransactionID != "p1" {
				t.Errorf("unexpected duplicate diagnostic %+v", dg)
			}
		}
	}
	if dup == 0 {
		t.Fatal("heuristic match should be reported")
	}
}

func TestDrillDown(t *testing.T) {
	ctx := context.Background()
	c := &Collector{}
	e := newTestEngine(fixture(t).Sources(), c)

	t.Run("labels and order", func(t *testing.T) {
		rows, err := e.DrillDown(ctx, "A", jan25, core.Income)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 2 || rows[0].ID != "a-inc-2" || rows[1].ID != "a-inc-1" {
			t.Fatalf("unexpected rows %+v", rows)
		}
		if rows[0].CategoryLabel != "Charter revenue" || !rows[0].CategoryResolved {
			t.Fatalf("category not resolved: %+v", rows[0])
		}
		if rows[0].Attachments == nil {
			t.Fatal("attachments should be an empty list, not nil")
		}
	})

	t.Run("unresolved category falls back to code", func(t *testing.T) {
		rows, err := e.DrillDown(ctx, "M", jan25, core.Income)
		if err != nil {
			t.Fatal(err)
		}
		var own *TransactionDetail
		var fees []TransactionDetail
		sum := decimal.Zero
		for i, row := range rows {
			sum = sum.Add(row.Amount)
			switch row.Source {
			case core.SourceManagementFee:
				fees = append(fees, row)
			default:
				own = &rows[i]
			}
		}
		if own == nil || own.CategoryLabel != "4200" || own.CategoryResolved {
			t.Fatalf("expected raw code fallback, got %+v", own)
		}
		if len(fees) != 2 {
			t.Fatalf("expected 2 fee rows, got %+v", fees)
		}
		for _, f := range fees {
			if f.ContributorID == "" || f.Currency != "THB" || f.ID != "fee:"+f.ContributorID+":2025-01" {
				t.Errorf("unexpected fee row %+v", f)
			}
		}
		assertDecimal(t, "drill-down sum", sum, "250")

		var unresolved bool
		for _, dg := range c.Diagnostics() {
			if dg.Kind == DiagUnresolvedCategory && dg.TransactionID == "m-inc-1" {
				unresolved = true
			}
		}
		if !unresolved {
			t.Fatal("unresolved category should be reported")
		}
	})

	t.Run("expenses", func(t *testing.T) {
		rows, err := e.DrillDown(ctx, "A", jan25, core.Expense)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 || rows[0].CategoryLabel != "Fuel" || !rows[0].Amount.Equal(d("150")) {
			t.Fatalf("unexpected rows %+v", rows)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		if _, err := e.DrillDown(ctx, "A", jan25, core.Kind("transfer")); !errors.Is(err, core.ErrInvalidKind) {
			t.Fatalf("expected ErrInvalidKind, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := e.DrillDown(ctx, "ghost", jan25, core.Income); !errors.Is(err, core.ErrProjectNotFound) {
			t.Fatalf("expected ErrProjectNotFound, got %v", err)
		}
	})
}
