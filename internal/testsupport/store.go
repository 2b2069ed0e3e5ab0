package testsupport

import (
	"context"
	"testing"

	"medialog/internal/config"
	"medialog/internal/report"
)

// MustOpenStore opens the results store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *report.Store {
	t.Helper()

	store, err := report.Open(cfg.Paths.ResultsDB)
	if err != nil {
		t.Fatalf("report.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// StartRun begins a run with the given id and engine names.
func StartRun(t testing.TB, store *report.Store, id string, engines ...string) *report.RunRecorder {
	t.Helper()

	rec, err := store.StartRun(context.Background(), report.RunInfo{ID: id, Source: "test", Engines: engines})
	if err != nil {
		t.Fatalf("store.StartRun: %v", err)
	}
	return rec
}
