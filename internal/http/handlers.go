package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/ratelimit"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/trace"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/report"
)

// displayFigures is a Figures row formatted for people.
type displayFigures struct {
	Income        string `json:"income"`
	ManagementFee string `json:"management_fee"`
	Expense       string `json:"expense"`
	Profit        string `json:"profit"`
}

func display(f report.Figures, code string) displayFigures {
	return displayFigures{
		Income:        currency.Format(f.Income, code),
		ManagementFee: currency.Format(f.ManagementFee, code),
		Expense:       currency.Format(f.Expense, code),
		Profit:        currency.Format(f.Profit, code),
	}
}

type reportDisplay struct {
	Months [12]displayFigures `json:"months"`
	Totals displayFigures     `json:"totals"`
}

type reportResponse struct {
	*report.Report
	Display  reportDisplay       `json:"display"`
	Warnings []report.Diagnostic `json:"warnings"`
}

func newReportResponse(r *report.Report, warnings []report.Diagnostic) *reportResponse {
	resp := &reportResponse{Report: r, Warnings: warnings}
	if resp.Warnings == nil {
		resp.Warnings = []report.Diagnostic{}
	}
	for i, m := range r.Months {
		resp.Display.Months[i] = display(m.Figures, r.BaseCurrency)
	}
	resp.Display.Totals = display(r.Totals, r.BaseCurrency)
	return resp
}

type drillDownResponse struct {
	ProjectID    string                     `json:"project_id"`
	Month        fiscal.Month               `json:"month"`
	Kind         core.Kind                  `json:"kind"`
	AsOf         string                     `json:"as_of"`
	BaseCurrency string                     `json:"base_currency"`
	Total        decimal.Decimal            `json:"total"`
	TotalDisplay string                     `json:"total_display"`
	Rows         []report.TransactionDetail `json:"rows"`
	Warnings     []report.Diagnostic        `json:"warnings"`
}

type healthResponse struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Uptime    string             `json:"uptime"`
	Requests  int64              `json:"requests"`
	Cache     cache.Stats        `json:"report_cache"`
	RateLimit *ratelimit.Metrics `json:"rate_limit,omitempty"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.started).String(),
		Requests:  s.tracer.GetMetrics().TotalRequests,
		Cache:     s.reports.Stats(),
	}
	if s.limiter != nil {
		m := s.limiter.GetMetrics()
		resp.RateLimit = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReport serves GET /api/projects/{id}/reports/{fy}?as_of=YYYY-MM-DD.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	projectID := sanitizeInput(r.PathValue("id"))
	fy, err := fiscal.ParseYear(r.PathValue("fy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf, err := parseAsOf(r, s.engine.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := reportKey{projectID: projectID, year: fy, asOf: asOf.Format(time.DateOnly)}
	resp, hit, err := s.reports.GetOrLoad(r.Context(), key, func(ctx context.Context) (*reportResponse, error) {
		warnings := &report.Collector{}
		rep, err := s.engine.GenerateReportAsOf(report.WithSink(ctx, warnings), projectID, fy, asOf)
		if err != nil {
			return nil, err
		}
		return newReportResponse(rep, warnings.Diagnostics()), nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Report served",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldProjectID, projectID,
		log.FieldFiscalYear, fy.String(),
		"cache_hit", hit)
	writeJSON(w, http.StatusOK, resp)
}

// handleDrillDown serves GET /api/projects/{id}/months/{month}/{kind}.
func (s *Server) handleDrillDown(w http.ResponseWriter, r *http.Request) {
	projectID := sanitizeInput(r.PathValue("id"))
	month, err := fiscal.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf, err := parseAsOf(r, s.engine.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	warnings := &report.Collector{}
	rows, err := s.engine.DrillDownAsOf(report.WithSink(r.Context(), warnings), projectID, month, kind, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	resp := drillDownResponse{
		ProjectID:    projectID,
		Month:        month,
		Kind:         kind,
		AsOf:         asOf.Format(time.DateOnly),
		BaseCurrency: s.engine.BaseCurrency(),
		Total:        total,
		TotalDisplay: currency.Format(total, s.engine.BaseCurrency()),
		Rows:         rows,
		Warnings:     warnings.Diagnostics(),
	}
	if resp.Rows == nil {
		resp.Rows = []report.TransactionDetail{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []report.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, resp)
}
