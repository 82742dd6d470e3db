package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/core"
)

// ProjectionsKey is the fixed slot holding the latest projection result.
const ProjectionsKey = "cashflow.projections"

// LoadState tags the outcome of reading the projection slot.
type LoadState int

const (
	Absent LoadState = iota
	Corrupt
	Present
)

func (s LoadState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Corrupt:
		return "corrupt"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// LoadOutcome distinguishes a never-written slot from an unreadable one.
// Reason is set only for Corrupt; Result only for Present.
type LoadOutcome struct {
	State  LoadState
	Reason string
	Result core.ProjectionResult
}

// ResultStore saves and loads the single projection result. Each Save
// overwrites the previous value; there is no versioning.
type ResultStore struct {
	kv  KV
	key string
}

func NewResultStore(kv KV) *ResultStore {
	return &ResultStore{kv: kv, key: ProjectionsKey}
}

// Save encodes result as JSON and overwrites the slot.
func (s *ResultStore) Save(ctx context.Context, result core.ProjectionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode projection result: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save projection result: %w", err)
	}
	return nil
}

// Load returns the saved result, or false when the slot is empty, unreadable
// or holds a payload that does not decode. Errors are logged, never returned.
// Use Inspect to tell those cases apart.
func (s *ResultStore) Load(ctx context.Context) (core.ProjectionResult, bool) {
	out, err := s.Inspect(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read projection result", "key", s.key, "error", err)
		return core.ProjectionResult{}, false
	}
	if out.State == Corrupt {
		slog.WarnContext(ctx, "Stored projection result is corrupt", "key", s.key, "reason", out.Reason)
	}
	return out.Result, out.State == Present
}

// Inspect reads the slot and reports whether it is absent, corrupt or
// present. Only failures of the underlying store are returned as errors.
func (s *ResultStore) Inspect(ctx context.Context) (LoadOutcome, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return LoadOutcome{State: Absent}, nil
	}
	if err != nil {
		return LoadOutcome{}, fmt.Errorf("load projection result: %w", err)
	}

	var result core.ProjectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return LoadOutcome{State: Corrupt, Reason: err.Error()}, nil
	}
	return LoadOutcome{State: Present, Result: result}, nil
}
