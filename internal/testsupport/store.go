package testsupport

import (
	"testing"

	"audiopipe/internal/config"
	"audiopipe/internal/jobindex"
)

// MustOpenIndex opens a jobindex.Store for tests and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config) *jobindex.Store {
	t.Helper()

	store, err := jobindex.Open(cfg)
	if err != nil {
		t.Fatalf("jobindex.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
