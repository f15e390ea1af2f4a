// Package report turns income and expense records into fiscal-year
// profit-and-loss reports per project and resolves monthly figures back to
// the records behind them.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
)

const (
	DefaultBaseCurrency    = "THB"
	DefaultManagementCode  = "MGMT"
	DefaultFeeCategoryCode = "management_fee"
	DefaultConcurrency     = 4
)

// DefaultDedupeTolerance is the amount difference, in base currency, under
// which two expenses with matching labels are taken to be the same.
var DefaultDedupeTolerance = decimal.NewFromInt(1)

// Options configures an Engine. Zero values fall back to the defaults above,
// except DedupeTolerance where zero means exact match; set it negative to
// get DefaultDedupeTolerance.
type Options struct {
	Normalizer      *currency.Normalizer
	ManagementCode  string
	DedupeTolerance decimal.Decimal
	FeeCategoryCode string
	Clock           func() time.Time
	Sink            DiagnosticSink
	Concurrency     int
	Logger          *log.Logger
}

// Engine generates reports and drill-downs. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	src    sources.Set
	opts   Options
	logger *log.Logger
	sl     *log.StructuredLogger
}

func NewEngine(src sources.Set, opts Options) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = currency.NewNormalizer(DefaultBaseCurrency, nil)
	}
	if opts.ManagementCode == "" {
		opts.ManagementCode = DefaultManagementCode
	}
	if opts.DedupeTolerance.IsNegative() {
		opts.DedupeTolerance = DefaultDedupeTolerance
	}
	if opts.FeeCategoryCode == "" {
		opts.FeeCategoryCode = DefaultFeeCategoryCode
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentReport)
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{Logger: opts.Logger}
	}
	return &Engine{
		src:    src,
		opts:   opts,
		logger: opts.Logger,
		sl:     log.NewStructuredLogger(opts.Logger),
	}
}

// BaseCurrency is the currency every report figure is expressed in.
func (e *Engine) BaseCurrency() string { return e.opts.Normalizer.Base() }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.opts.Clock() }

// GenerateReport builds the report of projectID for fy as of now.
func (e *Engine) GenerateReport(ctx context.Context, projectID string, fy fiscal.Year) (*Report, error) {
	return e.GenerateReportAsOf(ctx, projectID, fy, e.opts.Clock())
}

// GenerateReportAsOf builds the report of projectID for fy, recognizing
// income completed on or before asOf. It returns core.ErrProjectNotFound
// for unknown projects and a *core.UpstreamError when any source fails; no
// partial report is ever returned.
func (e *Engine) GenerateReportAsOf(ctx context.Context, projectID string, fy fiscal.Year, asOf time.Time) (*Report, error) {
	began := time.Now()
	asOf = core.Day(asOf)

	project, err := e.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	management := project.IsManagement(e.opts.ManagementCode)

	start, end := fy.DateRange()
	snap, err := e.fetch(ctx, start, end, fetchPlan{
		income:   true,
		expenses: true,
		projects: management,
	})
	if err != nil {
		e.logFailure(ctx, "Report generation failed", err, log.OpGenerate, projectID)
		return nil, err
	}

	rec := newRecorder(ctx, e.opts.Sink)
	months := fy.Months()
	income, allocs, err := e.income(ctx, project, management, snap, months[:], asOf, rec)
	if err != nil {
		e.logFailure(ctx, "Fee allocation failed", err, log.OpAllocate, projectID)
		return nil, err
	}
	expenses := projectExpenses(project, snap.expenses, snap.incidental, e.opts.Normalizer, e.opts.DedupeTolerance, rec)

	r := assemble(project, fy, bucket(project, fy, income, expenses))
	r.AsOf = asOf
	r.BaseCurrency = e.opts.Normalizer.Base()
	r.IsManagement = management
	r.Allocations = allocs

	e.sl.LogReportGenerated(ctx, project.ID, fy.String(), asOf.Format(time.DateOnly), contributorCount(allocs), time.Since(began))
	return r, nil
}

// DrillDown lists the records behind one monthly figure as of now.
func (e *Engine) DrillDown(ctx context.Context, projectID string, month fiscal.Month, kind core.Kind) ([]TransactionDetail, error) {
	return e.DrillDownAsOf(ctx, projectID, month, kind, e.opts.Clock())
}

// DrillDownAsOf lists the records behind the income or expense figure of
// projectID in month, with category codes resolved to labels. The rows sum
// to the figure GenerateReportAsOf reports for that month and asOf.
func (e *Engine) DrillDownAsOf(ctx context.Context, projectID string, month fiscal.Month, kind core.Kind, asOf time.Time) ([]TransactionDetail, error) {
	began := time.Now()
	asOf = core.Day(asOf)

	if kind != core.Income && kind != core.Expense {
		return nil, core.ErrInvalidKind
	}
	project, err := e.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	management := project.IsManagement(e.opts.ManagementCode)

	start, end := month.DateRange()
	snap, err := e.fetch(ctx, start, end, fetchPlan{
		income:   kind == core.Income,
		expenses: kind == core.Expense,
		projects: kind == core.Income && management,
		accounts: true,
	})
	if err != nil {
		e.logFailure(ctx, "Drill-down failed", err, log.OpDrillDown, projectID)
		return nil, err
	}

	rec := newRecorder(ctx, e.opts.Sink)
	var entries []Entry
	if kind == core.Income {
		entries, _, err = e.income(ctx, project, management, snap, []fiscal.Month{month}, asOf, rec)
		if err != nil {
			e.logFailure(ctx, "Fee allocation failed", err, log.OpAllocate, projectID)
			return nil, err
		}
	} else {
		entries = projectExpenses(project, snap.expenses, snap.incidental, e.opts.Normalizer, e.opts.DedupeTolerance, rec)
	}

	rows := details(entries, snap.accounts, rec)
	e.sl.LogDrillDown(ctx, project.ID, month.String(), kind.String(), len(rows), time.Since(began))
	return rows, nil
}

// income returns project's recognized income plus, for the management
// project, one fee entry per contributor and month of window.
func (e *Engine) income(ctx context.Context, project core.Project, management bool, snap *snapshot, window []fiscal.Month, asOf time.Time, rec *recorder) ([]Entry, []Allocation, error) {
	entries := recognizedIncome(project, snap.income, e.opts.Normalizer, asOf, rec)
	if !management {
		return entries, nil, nil
	}

	if !collectsFees(project, snap.projects, e.opts.ManagementCode, rec) {
		return entries, nil, nil
	}
	allocs, err := allocateFees(ctx, feeInput{
		contributors: contributorsOf(project, snap.projects, e.opts.ManagementCode),
		income:       snap.income,
		window:       window,
		normalizer:   e.opts.Normalizer,
		asOf:         asOf,
		limit:        e.opts.Concurrency,
	}, rec)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range allocs {
		entries = append(entries, a.entry(project, e.opts.Normalizer.Base(), e.opts.FeeCategoryCode))
	}
	sortEntries(entries)
	return entries, allocs, nil
}

func (e *Engine) project(ctx context.Context, id string) (core.Project, error) {
	if e.src.Projects == nil {
		return core.Project{}, core.Upstream("projects", errors.New("no project store configured"))
	}
	p, err := e.src.Projects.GetProject(ctx, id)
	switch {
	case errors.Is(err, core.ErrProjectNotFound):
		return core.Project{}, fmt.Errorf("%w: %s", core.ErrProjectNotFound, id)
	case err != nil:
		return core.Project{}, core.Upstream("projects", err)
	}
	return p, nil
}

type fetchPlan struct {
	income, expenses, projects, accounts bool
}

// snapshot is everything one request reads, fetched once.
type snapshot struct {
	income     []core.Transaction
	expenses   []core.Transaction
	incidental []core.Transaction
	projects   []core.Project
	accounts   map[string]string
}

// fetch issues the reads named by plan concurrently. Any failure cancels
// the others and fails the whole fetch.
func (e *Engine) fetch(ctx context.Context, start, end time.Time, plan fetchPlan) (*snapshot, error) {
	snap := &snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	byRange := func(name string, src sources.TransactionSource, dst *[]core.Transaction) {
		g.Go(func() error {
			if src == nil {
				return core.Upstream(name, errors.New("source not configured"))
			}
			txs, err := src.ByDateRange(ctx, start, end)
			if err != nil {
				return core.Upstream(name, err)
			}
			*dst = txs
			return nil
		})
	}

	if plan.income {
		byRange("income", e.src.Income, &snap.income)
	}
	if plan.expenses {
		byRange("expenses", e.src.Expenses, &snap.expenses)
		if e.src.Incidental != nil {
			byRange("incidental", e.src.Incidental, &snap.incidental)
		}
	}
	if plan.projects {
		g.Go(func() error {
			ps, err := e.src.Projects.ListProjects(ctx)
			if err != nil {
				return core.Upstream("projects", err)
			}
			snap.projects = ps
			return nil
		})
	}
	if plan.accounts {
		g.Go(func() error {
			if e.src.Accounts == nil {
				return nil
			}
			accounts, err := e.src.Accounts.Accounts(ctx)
			if err != nil {
				return core.Upstream("accounts", err)
			}
			snap.accounts = accounts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (e *Engine) logFailure(ctx context.Context, msg string, err error, op, projectID string) {
	fields := log.NewFields()
	fields[log.FieldProjectID] = projectID
	e.sl.LogError(ctx, msg, err, op, fields)
}

func contributorCount(allocs []Allocation) int {
	seen := make(map[string]struct{})
	for _, a := range allocs {
		seen[a.ContributorID] = struct{}{}
	}
	return len(seen)
}
