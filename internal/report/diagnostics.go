package report

import (
	"context"
	"sync"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

// DiagnosticKind classifies a data ambiguity. None of them fail a request.
type DiagnosticKind string

const (
	// DiagFallbackRate: a foreign record had no locked rate and the fallback table was used.
	DiagFallbackRate DiagnosticKind = "fallback_rate"
	// DiagUnknownCurrency: a foreign record had no locked rate and no fallback entry; rate 1 was used.
	DiagUnknownCurrency DiagnosticKind = "unknown_currency"
	// DiagUnresolvedCategory: a category code had no chart-of-accounts entry.
	DiagUnresolvedCategory DiagnosticKind = "unresolved_category"
	// DiagDuplicateExpense: an incidental expense was dropped by the label/amount heuristic.
	DiagDuplicateExpense DiagnosticKind = "duplicate_expense"
	// DiagMultipleManagement: a company has more than one management project;
	// only the one with the lowest id collects fees.
	DiagMultipleManagement DiagnosticKind = "multiple_management"
)

// Diagnostic describes one figure that should be audited rather than trusted.
type Diagnostic struct {
	Kind          DiagnosticKind `json:"kind"`
	ProjectID     string         `json:"project_id,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Message       string         `json:"message"`
}

// DiagnosticSink receives diagnostics. Implementations must be safe for
// concurrent use.
type DiagnosticSink interface {
	Record(ctx context.Context, d Diagnostic)
}

// LogSink writes diagnostics as warnings.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Record(ctx context.Context, d Diagnostic) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default(log.ComponentReport)
	}
	logger.WarnContext(ctx, "Report data ambiguity",
		log.FieldDiagnostic, string(d.Kind),
		log.FieldProjectID, d.ProjectID,
		log.FieldTransactionID, d.TransactionID,
		"detail", d.Message)
}

// Collector keeps diagnostics in memory.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Record(_ context.Context, d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Diagnostics returns a copy of what was recorded so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.items...)
}

type sinkKey struct{}

// WithSink attaches an extra, request-scoped sink to ctx. The engine
// records to it in addition to its configured sink.
func WithSink(ctx context.Context, sink DiagnosticSink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

func sinkFromContext(ctx context.Context) DiagnosticSink {
	s, _ := ctx.Value(sinkKey{}).(DiagnosticSink)
	return s
}

// recorder fans one request's diagnostics out to the sinks, dropping
// repeats of the same (kind, project, transaction) triple.
type recorder struct {
	ctx   context.Context
	sinks []DiagnosticSink

	mu   sync.Mutex
	seen map[string]struct{}
}

func newRecorder(ctx context.Context, base DiagnosticSink) *recorder {
	r := &recorder{ctx: ctx, seen: make(map[string]struct{})}
	if base != nil {
		r.sinks = append(r.sinks, base)
	}
	if extra := sinkFromContext(ctx); extra != nil {
		r.sinks = append(r.sinks, extra)
	}
	return r
}

func (r *recorder) record(d Diagnostic) {
	key := string(d.Kind) + "\x00" + d.ProjectID + "\x00" + d.TransactionID
	r.mu.Lock()
	if _, dup := r.seen[key]; dup {
		r.mu.Unlock()
		return
	}
	r.seen[key] = struct{}{}
	r.mu.Unlock()

	for _, s := range r.sinks {
		s.Record(r.ctx, d)
	}
}
