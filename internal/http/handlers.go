package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

// statusResponse is the body of GET /api/forecast/status.
type statusResponse struct {
	State            string     `json:"state"`
	Reason           string     `json:"reason,omitempty"`
	InProgress       bool       `json:"inProgress"`
	TrainingDate     *time.Time `json:"trainingDate,omitempty"`
	HistoricalMonths int        `json:"historicalMonths,omitempty"`
}

// historyResponse is the body of GET /api/history.
type historyResponse struct {
	Currency string                `json:"currency"`
	Years    []core.HistoricalYear `json:"years"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready when the result store can be read. A corrupt
// slot still counts as ready; only a failing backend does not.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyLimit)
	defer cancel()

	checks := map[string]string{}
	status, code := "ready", http.StatusOK

	if _, err := s.svc.Inspect(ctx); err != nil {
		checks["result_store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["result_store"] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes counters in a Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.trace.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	inProgress := 0
	if s.svc.InProgress() {
		inProgress = 1
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_response_time_avg_seconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_seconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_seconds %.6f\n\n", traceMetrics.AverageResponseTime.Seconds())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", limitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP forecast_in_progress Whether a forecast run is in flight\n")
	fmt.Fprintf(w, "# TYPE forecast_in_progress gauge\n")
	fmt.Fprintf(w, "forecast_in_progress %d\n\n", inProgress)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

// handleGenerate runs the pipeline and returns the saved result.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	currency, err := parseCurrency(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	result, err := s.svc.Generate(r.Context(), currency)
	if err != nil {
		s.generateError(r.Context(), err).Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/forecast").
		Body(result).
		Write(w)
}

// generateError maps pipeline failures to responses. Input errors carry
// their message to the caller; anything else is logged and hidden.
func (s *Server) generateError(ctx context.Context, err error) *JSONResponseBuilder {
	var insufficient *core.InsufficientDataError
	switch {
	case errors.Is(err, core.ErrGenerationInProgress):
		return ErrorResponse(http.StatusConflict, "in_progress", err.Error())
	case errors.Is(err, core.ErrSourceUnavailable):
		log.FromContext(ctx).WarnContext(ctx, "Transaction source unavailable",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeSource)
		return ErrorResponse(http.StatusBadGateway, "source_unavailable", "transaction source unavailable")
	case errors.As(err, &insufficient):
		return ErrorResponse(http.StatusUnprocessableEntity, "insufficient_data", err.Error())
	case errors.Is(err, core.ErrNoTransactions):
		return ErrorResponse(http.StatusUnprocessableEntity, "no_transactions", err.Error())
	default:
		log.FromContext(ctx).ErrorContext(ctx, "Forecast generation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldOperation, log.OpGenerate)
		return InternalServerError("forecast generation failed")
	}
}

// handleLatest returns the saved projection or 404.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	result, ok := s.svc.Latest(r.Context())
	if !ok {
		NotFoundError("no projections available").Write(w)
		return
	}
	NewJSONResponse().Body(result).Write(w)
}

// handleStatus reports whether the saved projection is absent, corrupt or
// present, and whether a run is in flight.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.svc.Inspect(r.Context())
	if err != nil {
		s.logger.LogError(r.Context(), "Inspect result store failed", err, log.OpInspect, log.ErrorTypeDatabase)
		InternalServerError("result store unavailable").Write(w)
		return
	}

	resp := statusResponse{
		State:      outcome.State.String(),
		Reason:     outcome.Reason,
		InProgress: s.svc.InProgress(),
	}
	if outcome.State == storage.Present {
		date := outcome.Result.TrainingDate
		resp.TrainingDate = &date
		resp.HistoricalMonths = outcome.Result.HistoricalMonths
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleHistory returns per-year totals for the requested currency.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	currency, err := parseCurrency(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if currency == "" {
		currency = s.svc.DefaultCurrency()
	}

	years, err := s.svc.HistoricalYearly(r.Context(), currency)
	if err != nil {
		if errors.Is(err, core.ErrSourceUnavailable) {
			ErrorResponse(http.StatusBadGateway, "source_unavailable", "transaction source unavailable").Write(w)
			return
		}
		s.logger.LogError(r.Context(), "Historical totals failed", err, log.OpHistory, log.ErrorTypeInternal)
		InternalServerError("history unavailable").Write(w)
		return
	}
	if years == nil {
		years = []core.HistoricalYear{}
	}
	NewJSONResponse().Body(historyResponse{Currency: currency, Years: years}).Write(w)
}
