package backend

import (
	"context"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ingest"
	"cashflow/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything the forecasting service runs on.
type BackendResult struct {
	Store       *storage.ResultStore
	Source      ingest.Source
	SourceCache *cache.LRUCache[[]core.Transaction]
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Store StoreType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	Source SourceKind

	// File and HTTP sources
	SourcePath string
	SourceURL  string

	// Google Sheets source
	GoogleSpreadsheetID string
	GoogleSheetName     string

	SourceCacheTTL time.Duration
}

// StoreType selects the key-value backend of the result store.
type StoreType string

const (
	MemoryStore   StoreType = "memory"
	SQLiteStore   StoreType = "sqlite"
	PostgresStore StoreType = "postgres"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case MemoryStore, SQLiteStore, PostgresStore:
		return true
	default:
		return false
	}
}

// SourceKind selects where transactions are read from.
type SourceKind string

const (
	FileSource   SourceKind = "file"
	HTTPSource   SourceKind = "http"
	SheetsSource SourceKind = "sheets"
)

func (sk SourceKind) String() string {
	return string(sk)
}

func (sk SourceKind) IsValid() bool {
	switch sk {
	case FileSource, HTTPSource, SheetsSource:
		return true
	default:
		return false
	}
}
