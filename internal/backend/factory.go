package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ingest"
	gsheet "cashflow/internal/sheets/google"
	"cashflow/internal/storage"
)

const defaultSourceCacheTTL = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger

	// newSheetsSource is replaced in tests.
	newSheetsSource func(ctx context.Context, spreadsheetID, sheetName string) (ingest.Source, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		newSheetsSource: func(ctx context.Context, id, sheet string) (ingest.Source, error) {
			return gsheet.New(ctx, id, sheet)
		},
	}
}

// CreateBackend builds the result store and the transaction source. The
// returned Cleanup closes the store and stops cache maintenance.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	kv, err := f.createKV(config)
	if err != nil {
		return nil, err
	}

	source, err := f.createSource(ctx, config)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	ttl := config.SourceCacheTTL
	if ttl <= 0 {
		ttl = defaultSourceCacheTTL
	}
	snapshots := cache.NewLRUCache[[]core.Transaction](1, ttl)
	manager := cache.NewManager()
	manager.Register(snapshots)
	manager.StartCleanup(ttl)

	f.logger.InfoContext(ctx, "Initialized backend",
		"store", config.Store,
		"source", config.Source,
		"source_cache_ttl", ttl)

	return &BackendResult{
		Store:       storage.NewResultStore(kv),
		Source:      source,
		SourceCache: snapshots,
		Cleanup: func() error {
			manager.Stop()
			return kv.Close()
		},
	}, nil
}

func (f *DefaultFactory) createKV(config Config) (storage.KV, error) {
	switch config.Store {
	case MemoryStore:
		f.logger.Warn("Using in-memory result store, projections are lost on restart")
		return storage.NewMemoryKV(), nil
	case SQLiteStore:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return kv, nil
	case PostgresStore:
		kv, err := storage.NewPostgresKV(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return kv, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config) (ingest.Source, error) {
	switch config.Source {
	case FileSource:
		f.logger.Info("Reading transactions from file", "path", config.SourcePath)
		return ingest.NewFileSource(config.SourcePath), nil
	case HTTPSource:
		f.logger.Info("Reading transactions over HTTP", "url", config.SourceURL)
		return ingest.NewHTTPSource(config.SourceURL), nil
	case SheetsSource:
		src, err := f.newSheetsSource(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
		}
		f.logger.Info("Reading transactions from Google Sheets", "spreadsheet_id", config.GoogleSpreadsheetID)
		return src, nil
	default:
		return nil, errors.New("unsupported source kind: " + config.Source.String())
	}
}
