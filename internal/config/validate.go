package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateNormalization(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	known := DefaultStageOrder()
	seen := make(map[string]struct{}, len(c.Pipeline.Stages))
	for _, name := range c.Pipeline.Stages {
		if !slices.Contains(known, name) {
			return fmt.Errorf("pipeline.stages: unknown stage %q (known: %s)", name, strings.Join(known, ", "))
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("pipeline.stages: stage %q listed more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Device {
	case "cpu", "cuda", "mps":
	default:
		if !strings.HasPrefix(c.Separation.Device, "cuda:") {
			return fmt.Errorf("separation.device must be cpu, cuda, cuda:N, or mps (got %q)", c.Separation.Device)
		}
	}
	return nil
}

func (c *Config) validateNormalization() error {
	target := c.Normalization.TargetDB
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return errors.New("normalization.target_db must be a finite number")
	}
	if target > 0 || target < -96 {
		return fmt.Errorf("normalization.target_db must be between -96 and 0 dBFS (got %.1f)", target)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxFileSizeMB <= 0 {
		return errors.New("limits.max_file_size_mb must be positive")
	}
	if len(c.Limits.SupportedFormats) == 0 {
		return errors.New("limits.supported_formats must list at least one extension")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.JobRetentionDays < 0 {
		return errors.New("retention.job_retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %s (got %q)", strings.Join(validLogLevels, ", "), c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	for stage, level := range c.Logging.StageOverrides {
		if !slices.Contains(validLogLevels, level) {
			return fmt.Errorf("logging.stage_overrides.%s: invalid level %q", stage, level)
		}
	}
	return nil
}
