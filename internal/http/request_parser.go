package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
)

const (
	maxRequestBody    = 4 << 10
	maxCurrencyLength = 16
)

var errInvalidCurrency = errors.New("invalid currency")

// forecastRequest is the optional JSON body of POST /api/forecast.
type forecastRequest struct {
	Currency string `json:"currency"`
}

// parseCurrency returns the requested currency from the query string or,
// failing that, from a JSON body. An empty result means the service default.
// The code is matched case-sensitively downstream, so it is not normalised.
func parseCurrency(r *http.Request) (string, error) {
	if v := r.URL.Query().Get("currency"); v != "" {
		return validateCurrency(v)
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxRequestBody {
		return "", errors.New("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var req forecastRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	if req.Currency == "" {
		return "", nil
	}
	return validateCurrency(req.Currency)
}

func validateCurrency(raw string) (string, error) {
	code := sanitizeInput(raw)
	if code == "" || len(code) > maxCurrencyLength {
		return "", fmt.Errorf("%w: %q", errInvalidCurrency, raw)
	}
	for _, r := range code {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: %q", errInvalidCurrency, raw)
		}
	}
	return code, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
