package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

func TestMiddlewareStampsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.New(log.Config{Format: "json", Component: log.ComponentTrace, Output: &buf}))

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/projects/A/reports/2024-2025", nil))

	if !strings.HasPrefix(seen, "req_") || rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("request id %q, header %q", seen, rr.Header().Get(HeaderRequestID))
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.FailedRequests != 1 {
		t.Fatalf("unexpected metrics %+v", got)
	}
	if !strings.Contains(buf.String(), `"status_code":502`) {
		t.Fatalf("completion log missing status: %s", buf.String())
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "caller-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "caller-42" {
		t.Fatalf("request id = %q, want caller-42", seen)
	}
}
