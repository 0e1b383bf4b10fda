package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Pipeline controls which stages run and how failures are recorded.
type Pipeline struct {
	// Stages lists stage names in execution order.
	Stages []string `toml:"stages"`
	// PersistFailedManifests writes manifest.json for failed jobs as well as
	// completed ones, so status lookups can report the failure.
	PersistFailedManifests bool `toml:"persist_failed_manifests"`
}

// Separation contains configuration for the source separation backend.
type Separation struct {
	Backend string `toml:"backend"`
	Model   string `toml:"model"`
	Device  string `toml:"device"`
	Binary  string `toml:"binary"`
}

// Decomposition configures the external harmonic/percussive helper.
type Decomposition struct {
	Command string `toml:"command"`
}

// Normalization contains loudness normalization settings.
type Normalization struct {
	TargetDB      float64 `toml:"target_db"`
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
}

// Limits bounds the inputs accepted by the pipeline.
type Limits struct {
	MaxFileSizeMB    int      `toml:"max_file_size_mb"`
	SupportedFormats []string `toml:"supported_formats"`
}

// Retention controls how long job directories are kept by `audiopipe prune`.
type Retention struct {
	JobRetentionDays int `toml:"job_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for audiopipe.
//
// Configuration sections by subsystem:
//   - Paths: job output and log directories
//   - Pipeline: stage order and failed-manifest persistence
//   - Separation: separator backend, model, and device
//   - Decomposition: harmonic/percussive helper command
//   - Normalization: loudness target and ffmpeg binaries
//   - Limits: accepted formats and maximum input size
//   - Retention: job directory retention
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Separation    Separation    `toml:"separation"`
	Decomposition Decomposition `toml:"decomposition"`
	Normalization Normalization `toml:"normalization"`
	Limits        Limits        `toml:"limits"`
	Retention     Retention     `toml:"retention"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiopipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IndexPath returns the location of the SQLite job index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// FFmpegBinary returns the ffmpeg executable used by composition and normalization.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Normalization.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for input inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Normalization.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// MaxFileSizeBytes converts the configured size limit to bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
