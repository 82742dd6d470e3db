package backend

import (
	"errors"
	"fmt"

	"cashflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Store:               StoreType(appConfig.DataBackend),
		SQLiteDBPath:        appConfig.SQLiteDBPath,
		PostgresDSN:         appConfig.PostgresDSN,
		Source:              SourceKind(appConfig.SourceKind),
		SourcePath:          appConfig.SourcePath,
		SourceURL:           appConfig.SourceURL,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
		SourceCacheTTL:      appConfig.SourceCacheTTL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	var errs []error

	if !c.Store.IsValid() {
		errs = append(errs, fmt.Errorf("invalid store type: %s", c.Store))
	}
	switch c.Store {
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			errs = append(errs, errors.New("SQLite database path is required for sqlite store"))
		}
	case PostgresStore:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("Postgres DSN is required for postgres store"))
		}
	}

	if !c.Source.IsValid() {
		errs = append(errs, fmt.Errorf("invalid source kind: %s", c.Source))
	}
	switch c.Source {
	case FileSource:
		if c.SourcePath == "" {
			errs = append(errs, errors.New("source path is required for file source"))
		}
	case HTTPSource:
		if c.SourceURL == "" {
			errs = append(errs, errors.New("source URL is required for http source"))
		}
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, errors.New("Google Spreadsheet ID is required for sheets source"))
		}
	}

	return errors.Join(errs...)
}

// GetStoreTypes returns all valid store types
func GetStoreTypes() []StoreType {
	return []StoreType{MemoryStore, SQLiteStore, PostgresStore}
}

// GetSourceKinds returns all valid source kinds
func GetSourceKinds() []SourceKind {
	return []SourceKind{FileSource, HTTPSource, SheetsSource}
}
