package jobindex_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"audiopipe/internal/jobindex"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/testsupport"
)

func manifestFor(id string, status pipeline.Status, created time.Time, records ...pipeline.StageRecord) *pipeline.Manifest {
	return &pipeline.Manifest{
		JobID:     id,
		InputFile: "/music/" + id + ".wav",
		CreatedAt: created,
		Version:   pipeline.ManifestVersion,
		Stages:    records,
		Outputs:   pipeline.Outputs{"normalized": "/out/" + id + "/normalized.wav"},
		Metadata:  map[string]any{pipeline.MetadataProcessorCount: 3},
		Status:    status,
	}
}

func failedRecord(name, message string) pipeline.StageRecord {
	return pipeline.StageRecord{Name: name, ProcessorType: "fake", Status: pipeline.StatusFailed, Error: &message}
}

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manifest := manifestFor("job-a", pipeline.StatusProcessing, created)
	if err := store.Record(ctx, manifest); err != nil {
		t.Fatalf("Record: %v", err)
	}

	manifest.Stages = append(manifest.Stages,
		pipeline.StageRecord{Name: "audio_separation", ProcessorType: "separator", Status: pipeline.StatusCompleted},
		failedRecord("normalization", "ffmpeg exited 1"),
	)
	manifest.Status = pipeline.StatusFailed
	if err := store.Record(ctx, manifest); err != nil {
		t.Fatalf("Record update: %v", err)
	}

	entry, err := store.Get(ctx, "job-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.Status != pipeline.StatusFailed || entry.FailedStage != "normalization" || entry.ErrorMessage != "ffmpeg exited 1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.StageCount != 3 || entry.CompletedStages != 1 || entry.LastStage != "normalization" || entry.OutputCount != 1 {
		t.Fatalf("unexpected counters %+v", entry)
	}
	if !entry.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %s", entry.CreatedAt)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown job; got %v, %v", missing, err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixtures := []*pipeline.Manifest{
		manifestFor("old-done", pipeline.StatusCompleted, base),
		manifestFor("failed", pipeline.StatusFailed, base.Add(time.Hour), failedRecord("composite_track_creation", "boom")),
		manifestFor("new-done", pipeline.StatusCompleted, base.Add(2*time.Hour)),
	}
	for _, m := range fixtures {
		if err := store.Record(ctx, m); err != nil {
			t.Fatalf("Record %s: %v", m.JobID, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].JobID != "new-done" || all[2].JobID != "old-done" {
		t.Fatalf("unexpected ordering: %v", ids(all))
	}

	completed, err := store.List(ctx, pipeline.StatusCompleted)
	if err != nil {
		t.Fatalf("List completed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed, got %v", ids(completed))
	}

	removed, err := store.Delete(ctx, "failed", "unknown")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	failed, err := store.List(ctx, pipeline.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failed entries, got %v", ids(failed))
	}
}

func TestListOrdersJobsWithinSameSecond(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	for _, m := range []*pipeline.Manifest{
		manifestFor("older", pipeline.StatusCompleted, base.Add(120*time.Millisecond)),
		manifestFor("newer", pipeline.StatusCompleted, base.Add(123*time.Millisecond)),
	} {
		if err := store.Record(ctx, m); err != nil {
			t.Fatalf("Record %s: %v", m.JobID, err)
		}
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(entries); len(got) != 2 || got[0] != "newer" || got[1] != "older" {
		t.Fatalf("expected newest first, got %v", got)
	}
	if !entries[1].CreatedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Fatalf("created_at = %s", entries[1].CreatedAt)
	}
}

func TestMarkAbandoned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"live", "dead"} {
		if err := store.Record(ctx, manifestFor(id, pipeline.StatusProcessing, now)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	count, err := store.MarkAbandoned(ctx, func(id string) bool { return id == "live" })
	if err != nil {
		t.Fatalf("MarkAbandoned: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	dead, _ := store.Get(ctx, "dead")
	live, _ := store.Get(ctx, "live")
	if dead.Status != pipeline.StatusFailed || dead.ErrorMessage == "" {
		t.Fatalf("dead job not marked: %+v", dead)
	}
	if live.Status != pipeline.StatusProcessing {
		t.Fatalf("live job changed: %+v", live)
	}
}

func TestObserverIndexesEngineJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)

	engine, err := pipeline.New(pipeline.Options{
		BaseDir:  cfg.Paths.OutputDir,
		Observer: jobindex.NewObserver(store, nil),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := engine.AddStage(rejectingStage{}); err != nil {
		t.Fatalf("AddStage: %v", err)
	}

	manifest, err := engine.Process(context.Background(), "song.txt")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	entry, err := store.Get(context.Background(), manifest.JobID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v, %v", entry, err)
	}
	if entry.Status != pipeline.StatusFailed || entry.FailedStage != "picky" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestObserverMarksUnpersistedJobFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)

	engine, err := pipeline.New(pipeline.Options{
		BaseDir:  cfg.Paths.OutputDir,
		Observer: jobindex.NewObserver(store, nil),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := engine.AddStage(manifestBlocker{}); err != nil {
		t.Fatalf("AddStage: %v", err)
	}

	manifest, err := engine.Process(context.Background(), "song.wav")
	if !errors.Is(err, pipeline.ErrManifestNotPersisted) {
		t.Fatalf("expected ErrManifestNotPersisted, got %v", err)
	}
	entry, err := store.Get(context.Background(), manifest.JobID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v, %v", entry, err)
	}
	if entry.Status != pipeline.StatusFailed || !strings.HasPrefix(entry.ErrorMessage, "manifest not persisted") {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.CompletedStages != 1 || entry.FailedStage != "" {
		t.Fatalf("unexpected stage summary %+v", entry)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.IndexPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := jobindex.Open(cfg); !errors.Is(err, jobindex.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRebuildsOlderSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenIndex(t, cfg)
	if err := store.Record(context.Background(), manifestFor("stale", pipeline.StatusCompleted, time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.IndexPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = db.Close()

	reopened, err := jobindex.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rebuilt index to be empty, got %v", ids(entries))
	}
}

type manifestBlocker struct{}

func (manifestBlocker) Name() string              { return "blocker" }
func (manifestBlocker) ProcessorType() string     { return "fake" }
func (manifestBlocker) ValidateInput(string) bool { return true }

func (manifestBlocker) Execute(_ context.Context, _ string, workDir string) (pipeline.Outputs, error) {
	if err := os.Mkdir(filepath.Join(workDir, pipeline.ManifestFileName), 0o755); err != nil {
		return nil, err
	}
	return pipeline.Outputs{}, nil
}

type rejectingStage struct{}

func (rejectingStage) Name() string              { return "picky" }
func (rejectingStage) ProcessorType() string     { return "fake" }
func (rejectingStage) ValidateInput(string) bool { return false }
func (rejectingStage) Execute(context.Context, string, string) (pipeline.Outputs, error) {
	return nil, nil
}

func ids(entries []*jobindex.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.JobID)
	}
	return out
}
