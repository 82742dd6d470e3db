package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashflow/internal/log"
)

func newTestMiddleware() (*Middleware, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	return NewMiddleware(logger, func(*http.Request) string { return "10.1.2.3" }), &buf
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m, buf := newTestMiddleware()

	var seen string
	var fromLogger bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		fromLogger = log.FromContext(r.Context()).Component() == log.ComponentTrace
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/forecast", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), seen)
	}
	if !fromLogger {
		t.Fatal("expected request-scoped logger in context")
	}
	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "status_code=418", "client_ip=10.1.2.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in log output", want)
		}
	}
}

func TestMiddlewareReusesIncomingID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"token", "abc-123_x.y", true},
		{"with spaces", "abc 123", false},
		{"too long", strings.Repeat("a", 65), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMiddleware()
			h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			got := rr.Header().Get(HeaderRequestID)
			if (got == tt.incoming) != tt.reuse {
				t.Fatalf("got %q for incoming %q, reuse=%v", got, tt.incoming, tt.reuse)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m, _ := newTestMiddleware()
	if got := m.GetMetrics(); got.TotalRequests != 0 || got.AverageResponseTime != 0 {
		t.Fatalf("unexpected initial metrics: %+v", got)
	}
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Fatalf("TotalRequests = %d, want 3", got)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
