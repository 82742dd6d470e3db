package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"cashflow/internal/core"
)

// Source loads the full labeled transaction history.
type Source interface {
	Transactions(ctx context.Context) ([]core.Transaction, error)
}

// FileSource reads a CSV export from the local filesystem.
type FileSource struct {
	Path string
}

var (
	_ Source = (*FileSource)(nil)
	_ Source = (*HTTPSource)(nil)
)

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Transactions(ctx context.Context) ([]core.Transaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrSourceUnavailable, s.Path, err)
	}
	defer f.Close()

	txns, stats, err := ParseWithStats(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", core.ErrSourceUnavailable, s.Path, err)
	}
	slog.DebugContext(ctx, "Transactions loaded from file",
		"path", s.Path,
		"rows", stats.Rows,
		"dropped", stats.Dropped)
	return txns, nil
}

// HTTPSource fetches a CSV export over HTTP(S). Non-2xx responses are
// treated as an unreadable source.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, Client: newHTTPClient()}
}

func (s *HTTPSource) Transactions(ctx context.Context) ([]core.Transaction, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", core.ErrSourceUnavailable, s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", core.ErrSourceUnavailable, s.URL, resp.StatusCode)
	}

	txns, stats, err := ParseWithStats(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", core.ErrSourceUnavailable, s.URL, err)
	}
	slog.DebugContext(ctx, "Transactions fetched",
		"url", s.URL,
		"rows", stats.Rows,
		"dropped", stats.Dropped)
	return txns, nil
}

// newHTTPClient mirrors the pooled client used for the Sheets API.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
