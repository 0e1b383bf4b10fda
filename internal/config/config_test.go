package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"audiopipe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "audiopipe", "outputs")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "audiopipe", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if !slices.Equal(cfg.Pipeline.Stages, config.DefaultStageOrder()) {
		t.Fatalf("unexpected default stages: %v", cfg.Pipeline.Stages)
	}
	if !cfg.Pipeline.PersistFailedManifests {
		t.Fatal("expected failed manifests to be persisted by default")
	}
	if cfg.Separation.Backend != "demucs" || cfg.Separation.Model != "htdemucs_ft" || cfg.Separation.Device != "cpu" {
		t.Fatalf("unexpected separation defaults: %+v", cfg.Separation)
	}
	if cfg.Normalization.TargetDB != -20.0 {
		t.Fatalf("unexpected target db: %v", cfg.Normalization.TargetDB)
	}
	if cfg.MaxFileSizeBytes() != 500*1024*1024 {
		t.Fatalf("unexpected size limit: %d", cfg.MaxFileSizeBytes())
	}
	if cfg.Retention.JobRetentionDays != 30 {
		t.Fatalf("unexpected retention: %d", cfg.Retention.JobRetentionDays)
	}
	if cfg.IndexPath() != filepath.Join(cfg.Paths.LogDir, "jobs.db") {
		t.Fatalf("unexpected index path: %q", cfg.IndexPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
output_dir = "~/jobs"

[pipeline]
stages = [" Normalization ", "audio_separation"]
persist_failed_manifests = false

[separation]
device = "CUDA"

[limits]
supported_formats = [".WAV", "flac", "wav"]

[logging]
format = "JSON"

[logging.stage_overrides]
Normalization = "DEBUG"

[future_section]
ignored = true
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "jobs") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if !slices.Equal(cfg.Pipeline.Stages, []string{"normalization", "audio_separation"}) {
		t.Fatalf("unexpected stages: %v", cfg.Pipeline.Stages)
	}
	if cfg.Pipeline.PersistFailedManifests {
		t.Fatal("expected persist_failed_manifests=false")
	}
	if cfg.Separation.Device != "cuda" {
		t.Fatalf("expected lowercased device, got %q", cfg.Separation.Device)
	}
	if !slices.Equal(cfg.Limits.SupportedFormats, []string{"wav", "flac"}) {
		t.Fatalf("unexpected formats: %v", cfg.Limits.SupportedFormats)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Logging.StageOverrides["normalization"] != "debug" {
		t.Fatalf("unexpected overrides: %v", cfg.Logging.StageOverrides)
	}
}

func TestEnvOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	t.Setenv("AUDIOPIPE_DEVICE", "mps")
	t.Setenv("AUDIOPIPE_SEPARATOR_MODEL", "htdemucs")
	t.Setenv("AUDIOPIPE_TARGET_DB", "-14.5")
	t.Setenv("AUDIOPIPE_MAX_FILE_SIZE_MB", "42")
	t.Setenv("AUDIOPIPE_LOG_LEVEL", "debug")
	t.Setenv("AUDIOPIPE_JOB_RETENTION_DAYS", "7")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Separation.Device != "mps" || cfg.Separation.Model != "htdemucs" {
		t.Fatalf("unexpected separation: %+v", cfg.Separation)
	}
	if cfg.Normalization.TargetDB != -14.5 {
		t.Fatalf("unexpected target db: %v", cfg.Normalization.TargetDB)
	}
	if cfg.Limits.MaxFileSizeMB != 42 {
		t.Fatalf("unexpected size limit: %d", cfg.Limits.MaxFileSizeMB)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level: %q", cfg.Logging.Level)
	}
	if cfg.Retention.JobRetentionDays != 7 {
		t.Fatalf("unexpected retention: %d", cfg.Retention.JobRetentionDays)
	}
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	t.Setenv("AUDIOPIPE_TARGET_DB", "loud")

	if _, _, _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "AUDIOPIPE_TARGET_DB") {
		t.Fatalf("expected target db parse error, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown stage", func(c *config.Config) { c.Pipeline.Stages = []string{"reverb"} }, "unknown stage"},
		{"duplicate stage", func(c *config.Config) {
			c.Pipeline.Stages = []string{config.StageNormalization, config.StageNormalization}
		}, "more than once"},
		{"device", func(c *config.Config) { c.Separation.Device = "tpu" }, "separation.device"},
		{"positive target", func(c *config.Config) { c.Normalization.TargetDB = 3 }, "target_db"},
		{"size", func(c *config.Config) { c.Limits.MaxFileSizeMB = 0 }, "max_file_size_mb"},
		{"formats", func(c *config.Config) { c.Limits.SupportedFormats = nil }, "supported_formats"},
		{"retention", func(c *config.Config) { c.Retention.JobRetentionDays = -1 }, "job_retention_days"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"override level", func(c *config.Config) {
			c.Logging.StageOverrides = map[string]string{"normalization": "loud"}
		}, "stage_overrides"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEmptyStageListIsValid(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Stages = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty stage list to validate, got %v", err)
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if !slices.Equal(cfg.Pipeline.Stages, config.DefaultStageOrder()) {
		t.Fatalf("sample stages drifted from defaults: %v", cfg.Pipeline.Stages)
	}
	if cfg.Normalization.TargetDB != config.Default().Normalization.TargetDB {
		t.Fatalf("sample target db drifted: %v", cfg.Normalization.TargetDB)
	}
}
