package workspace_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"audiopipe/internal/workspace"
)

func TestCreateLocksJobDirectory(t *testing.T) {
	root, err := workspace.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job, err := root.Create("job-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info, err := os.Stat(job.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("expected job directory at %s, err=%v", job.Dir(), err)
	}
	if _, err := root.Create("job-1"); !errors.Is(err, workspace.ErrJobBusy) {
		t.Fatalf("expected ErrJobBusy for locked job, got %v", err)
	}
	if !root.Running("job-1") {
		t.Fatal("locked job should report running")
	}
	if err := job.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if root.Running("job-1") || root.Running("missing") {
		t.Fatal("released or missing job should not report running")
	}
	again, err := root.Create("job-1")
	if err != nil {
		t.Fatalf("Create after release: %v", err)
	}
	_ = again.Release()
}

func TestValidateJobIDRejectsTraversal(t *testing.T) {
	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`, ".hidden", " padded"} {
		if err := workspace.ValidateJobID(id); !errors.Is(err, workspace.ErrInvalidJobID) {
			t.Errorf("ValidateJobID(%q) = %v, want ErrInvalidJobID", id, err)
		}
	}
	if err := workspace.ValidateJobID("4b1f0c6e-8d1e-4a3f-9c55-0d7f3e2a9b10"); err != nil {
		t.Fatalf("uuid should be valid: %v", err)
	}
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	root, err := workspace.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job, err := root.Create("job-2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer job.Release()

	if err := job.WriteFile("manifest.json", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := job.WriteFile("manifest.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := root.ReadFile("job-2", "manifest.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Fatalf("unexpected contents %q", data)
	}
	entries, err := os.ReadDir(job.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	root, err := workspace.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := root.ReadFile("nope", "manifest.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if _, err := root.ReadFile("../nope", "manifest.json"); !errors.Is(err, workspace.ErrInvalidJobID) {
		t.Fatalf("expected ErrInvalidJobID, got %v", err)
	}
}

func TestPruneSkipsRunningAndRecentJobs(t *testing.T) {
	root, err := workspace.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	old := time.Now().Add(-72 * time.Hour)

	stale, err := root.Create("stale")
	if err != nil {
		t.Fatalf("Create stale: %v", err)
	}
	if err := stale.WriteFile("manifest.json", []byte("{}")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_ = stale.Release()
	if err := os.Chtimes(filepath.Join(stale.Dir(), "manifest.json"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	running, err := root.Create("running")
	if err != nil {
		t.Fatalf("Create running: %v", err)
	}
	defer running.Release()
	if err := os.Chtimes(running.Dir(), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	fresh, err := root.Create("fresh")
	if err != nil {
		t.Fatalf("Create fresh: %v", err)
	}
	_ = fresh.Release()

	result, err := root.Prune(context.Background(), time.Now().Add(-24*time.Hour), nil)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "stale" {
		t.Fatalf("expected only stale removed, got %+v", result)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "running" {
		t.Fatalf("expected running skipped, got %+v", result)
	}
	if _, err := os.Stat(stale.Dir()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("stale job directory still present: %v", err)
	}
	ids, err := root.JobIDs()
	if err != nil {
		t.Fatalf("JobIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two remaining jobs, got %v", ids)
	}
}
