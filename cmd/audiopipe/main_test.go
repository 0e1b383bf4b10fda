package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audiopipe/internal/config"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/testsupport"
)

func processJSON(t *testing.T, env *cliTestEnv, input string) pipeline.Manifest {
	t.Helper()
	stdout, stderr, err := runCLI(t, []string{"process", input, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v (stderr: %s)", err, stderr)
	}
	var manifest pipeline.Manifest
	if err := json.Unmarshal([]byte(stdout), &manifest); err != nil {
		t.Fatalf("decode manifest: %v\n%s", err, stdout)
	}
	return manifest
}

func TestProcessStatusOutputsAndJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "song.wav")
	testsupport.WriteFile(t, input, 2048)

	manifest := processJSON(t, env, input)
	if manifest.Status != pipeline.StatusCompleted {
		t.Fatalf("status = %s", manifest.Status)
	}
	if manifest.Outputs["vocals"] == "" {
		t.Fatalf("missing vocals output: %v", manifest.Outputs)
	}

	stdout, _, err := runCLI(t, []string{"status", manifest.JobID}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, manifest.JobID)
	requireContains(t, stdout, "Audio Separation")
	requireContains(t, stdout, "completed")

	stdout, _, err = runCLI(t, []string{"outputs", manifest.JobID, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	var outputs map[string]string
	if err := json.Unmarshal([]byte(stdout), &outputs); err != nil {
		t.Fatalf("decode outputs: %v", err)
	}
	if outputs["drums"] != manifest.Outputs["drums"] {
		t.Fatalf("outputs drums = %q, want %q", outputs["drums"], manifest.Outputs["drums"])
	}

	stdout, _, err = runCLI(t, []string{"jobs", "--status", "completed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, stdout, manifest.JobID)

	stdout, _, err = runCLI(t, []string{"jobs", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs failed filter: %v", err)
	}
	requireContains(t, stdout, "No jobs recorded")
}

func TestProcessFailureNamesStage(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "notes.txt")
	testsupport.WriteFile(t, input, 16)

	_, stderr, err := runCLI(t, []string{"process", input}, env.configPath)
	if !errors.Is(err, errSilentFailure) {
		t.Fatalf("expected silent failure, got %v", err)
	}
	requireContains(t, stderr, "Processing failed at Audio Separation")
	requireContains(t, stderr, "invalid input for stage audio_separation")

	stdout, _, err := runCLI(t, []string{"jobs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	var entries []jobListEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != string(pipeline.StatusFailed) || entries[0].FailedStage != config.StageSeparation {
		t.Fatalf("unexpected index entries %+v", entries)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, stderr, err := runCLI(t, []string{"status", "does-not-exist"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	requireContains(t, stderr, "job not found: does-not-exist")

	_, stderr, err = runCLI(t, []string{"outputs", "../escape"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for traversal id")
	}
	requireContains(t, stderr, "job not found")
}

func TestStagesListsConfiguredOrder(t *testing.T) {
	env := setupCLITestEnv(t, config.StageNormalization, config.StageSeparation)
	stdout, _, err := runCLI(t, []string{"stages"}, env.configPath)
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	norm := strings.Index(stdout, "Normalization")
	sep := strings.Index(stdout, "Audio Separation")
	if norm < 0 || sep < 0 || norm > sep {
		t.Fatalf("unexpected stage order:\n%s", stdout)
	}
	requireContains(t, stdout, "audio_processing")
}

func TestSeparatorsMarksConfiguredBackend(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, err := runCLI(t, []string{"separators"}, env.configPath)
	if err != nil {
		t.Fatalf("separators: %v", err)
	}
	requireContains(t, stdout, "demucs")
	requireContains(t, stdout, "yes")
}

func TestPruneRemovesExpiredJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "song.wav")
	testsupport.WriteFile(t, input, 512)
	manifest := processJSON(t, env, input)

	jobDir := filepath.Join(env.cfg.Paths.OutputDir, manifest.JobID)
	old := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(filepath.Join(jobDir, pipeline.ManifestFileName), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"prune", "--days", "30"}, env.configPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	requireContains(t, stdout, "Removed 0 job(s)")

	stdout, _, err = runCLI(t, []string{"prune", "--days", "5", "--skip-logs"}, env.configPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	requireContains(t, stdout, "Removed 1 job(s)")
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Fatalf("job dir still present: %v", err)
	}

	stdout, _, err = runCLI(t, []string{"jobs"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, stdout, "No jobs recorded")
}

func TestDoctorReportsDependencies(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, _ := runCLI(t, []string{"doctor"}, env.configPath)
	requireContains(t, stdout, "== Directories ==")
	requireContains(t, stdout, "== Dependencies ==")
	requireContains(t, stdout, "Demucs:")
	requireContains(t, stdout, "[OK] Ready")
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}

	stdout, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, env.cfg.Paths.OutputDir)
	requireContains(t, stdout, "[separation]")

	stdout, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Configuration valid")
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"--log-level", "chatty", "stages"}, env.configPath); err == nil {
		t.Fatal("expected invalid log level to fail")
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, "audiopipe.log")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "2026-01-01T00:00:00Z INFO pipeline: job started job_id=one\n" +
		"2026-01-01T00:00:01Z INFO pipeline: job started job_id=two\n" +
		"2026-01-01T00:00:02Z INFO pipeline: job completed job_id=one\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"logs", "--job", "one"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(stdout, "job_id=two") {
		t.Fatalf("unexpected line for other job:\n%s", stdout)
	}
	requireContains(t, stdout, "job completed job_id=one")

	stdout, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Count(stdout, "\n") != 1 {
		t.Fatalf("expected one line, got:\n%s", stdout)
	}
}
