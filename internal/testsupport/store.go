package testsupport

import (
	"context"
	"testing"

	"copyengine/internal/config"
	"copyengine/internal/jobs"
)

// MustOpenStore opens the job store selected by cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job of kind for tests using the provided store.
func NewJob(t testing.TB, store jobs.Store, kind jobs.Kind) jobs.Job {
	t.Helper()

	job, err := store.CreateJob(context.Background(), kind, nil)
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
