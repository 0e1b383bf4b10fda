package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	envDevice           = "AUDIOPIPE_DEVICE"
	envSeparatorModel   = "AUDIOPIPE_SEPARATOR_MODEL"
	envTargetDB         = "AUDIOPIPE_TARGET_DB"
	envMaxFileSizeMB    = "AUDIOPIPE_MAX_FILE_SIZE_MB"
	envLogLevel         = "AUDIOPIPE_LOG_LEVEL"
	envJobRetentionDays = "AUDIOPIPE_JOB_RETENTION_DAYS"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeSeparation()
	c.normalizeDecomposition()
	c.normalizeLimits()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if value, ok := lookupEnv(envDevice); ok {
		c.Separation.Device = value
	}
	if value, ok := lookupEnv(envSeparatorModel); ok {
		c.Separation.Model = value
	}
	if value, ok := lookupEnv(envLogLevel); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupEnv(envTargetDB); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envTargetDB, err)
		}
		c.Normalization.TargetDB = parsed
	}
	if value, ok := lookupEnv(envMaxFileSizeMB); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxFileSizeMB, err)
		}
		c.Limits.MaxFileSizeMB = parsed
	}
	if value, ok := lookupEnv(envJobRetentionDays); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envJobRetentionDays, err)
		}
		c.Retention.JobRetentionDays = parsed
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalizePipeline() {
	stages := make([]string, 0, len(c.Pipeline.Stages))
	for _, name := range c.Pipeline.Stages {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		stages = append(stages, name)
	}
	c.Pipeline.Stages = stages
}

func (c *Config) normalizeSeparation() {
	c.Separation.Backend = strings.ToLower(strings.TrimSpace(c.Separation.Backend))
	if c.Separation.Backend == "" {
		c.Separation.Backend = defaultSeparationBackend
	}
	c.Separation.Model = strings.TrimSpace(c.Separation.Model)
	if c.Separation.Model == "" {
		c.Separation.Model = defaultSeparationModel
	}
	c.Separation.Device = strings.ToLower(strings.TrimSpace(c.Separation.Device))
	if c.Separation.Device == "" {
		c.Separation.Device = defaultSeparationDevice
	}
	c.Separation.Binary = strings.TrimSpace(c.Separation.Binary)
	if c.Separation.Binary == "" {
		c.Separation.Binary = defaultSeparationBinary
	}
}

func (c *Config) normalizeDecomposition() {
	c.Decomposition.Command = strings.TrimSpace(c.Decomposition.Command)
	if c.Decomposition.Command == "" {
		c.Decomposition.Command = defaultDecompositionCommand
	}
}

func (c *Config) normalizeLimits() {
	formats := make([]string, 0, len(c.Limits.SupportedFormats))
	seen := make(map[string]struct{}, len(c.Limits.SupportedFormats))
	for _, format := range c.Limits.SupportedFormats {
		format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
		if format == "" {
			continue
		}
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		formats = append(formats, format)
	}
	c.Limits.SupportedFormats = formats
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			level = strings.ToLower(strings.TrimSpace(level))
			if stage == "" || level == "" {
				continue
			}
			overrides[stage] = level
		}
		c.Logging.StageOverrides = overrides
	}
}
