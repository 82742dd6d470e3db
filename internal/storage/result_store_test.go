package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"cashflow/internal/core"
)

func sampleResult() core.ProjectionResult {
	acc := 0.87
	return core.ProjectionResult{
		Projections: []core.ProjectedMonth{
			{MonthKey: "2024-12", ProjectedIncome: 1234.5, ProjectedExpenses: 876.25},
			{MonthKey: "2025-01", ProjectedIncome: 1300, ProjectedExpenses: 900.125},
		},
		ModelAccuracy:    &acc,
		TrainingDate:     time.Date(2024, 11, 30, 18, 4, 5, 123456789, time.UTC),
		HistoricalMonths: 11,
	}
}

func TestResultStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		result core.ProjectionResult
	}{
		{name: "with accuracy", result: sampleResult()},
		{name: "without accuracy", result: func() core.ProjectionResult {
			r := sampleResult()
			r.ModelAccuracy = nil
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewResultStore(NewMemoryKV())
			if err := store.Save(ctx, tt.result); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, ok := store.Load(ctx)
			if !ok {
				t.Fatalf("expected a stored result")
			}
			if !reflect.DeepEqual(got, tt.result) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tt.result)
			}
		})
	}
}

func TestResultStoreSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(NewMemoryKV())
	first := sampleResult()
	second := sampleResult()
	second.HistoricalMonths = 99
	second.Projections = second.Projections[:1]

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := store.Load(ctx)
	if !ok || got.HistoricalMonths != 99 || len(got.Projections) != 1 {
		t.Fatalf("expected second result, got %+v", got)
	}
}

func TestResultStoreAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(NewMemoryKV())

	if _, ok := store.Load(ctx); ok {
		t.Fatalf("expected absence on empty store")
	}
	out, err := store.Inspect(ctx)
	if err != nil || out.State != Absent {
		t.Fatalf("expected Absent, got %+v %v", out, err)
	}
}

func TestResultStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Put(ctx, ProjectionsKey, []byte(`{"projections": [`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	store := NewResultStore(kv)

	if _, ok := store.Load(ctx); ok {
		t.Fatalf("corrupt payload must load as absent")
	}
	out, err := store.Inspect(ctx)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if out.State != Corrupt || out.Reason == "" {
		t.Fatalf("expected Corrupt with reason, got %+v", out)
	}
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Put(context.Context, string, []byte) error { return f.err }
func (f failingKV) Close() error { return nil }

func TestResultStoreBackendFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := NewResultStore(failingKV{err: boom})

	if err := store.Save(ctx, sampleResult()); !errors.Is(err, boom) {
		t.Fatalf("save must propagate write errors, got %v", err)
	}
	if _, ok := store.Load(ctx); ok {
		t.Fatalf("load must swallow read errors")
	}
	if _, err := store.Inspect(ctx); !errors.Is(err, boom) {
		t.Fatalf("inspect must report read errors, got %v", err)
	}
}

func TestLoadStateString(t *testing.T) {
	for state, want := range map[LoadState]string{Absent: "absent", Corrupt: "corrupt", Present: "present"} {
		if got := state.String(); got != want {
			t.Fatalf("%d: got %q want %q", state, got, want)
		}
	}
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "data", "cashflow.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer kv.Close()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := kv.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := kv.Get(ctx, "k")
	if err != nil || string(got) != "two" {
		t.Fatalf("expected overwritten value, got %q %v", got, err)
	}

	store := NewResultStore(kv)
	want := sampleResult()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok := store.Load(ctx)
	if !ok || !reflect.DeepEqual(loaded, want) {
		t.Fatalf("sqlite round trip mismatch: %+v", loaded)
	}
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	buf := []byte("abc")
	_ = kv.Put(ctx, "k", buf)
	buf[0] = 'x'
	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", got)
	}
}
