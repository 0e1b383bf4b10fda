// Package normalization implements the loudness normalization stage. The
// input's RMS level is measured with ffmpeg's volumedetect filter and a
// single gain brings it to the configured target.
package normalization

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"audiopipe/internal/logging"
	"audiopipe/internal/media/ffmpeg"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/services"
)

const (
	StageName     = "normalization"
	ProcessorType = "audio_processing"
	OutputDirName = "normalized"
	// DefaultTargetDB is the RMS level outputs are normalized to.
	DefaultTargetDB = -20.0
)

// Stage normalizes the job input to a target RMS level.
type Stage struct {
	targetDB     float64
	ffmpegBinary string
	logger       *slog.Logger
}

var _ pipeline.Stage = (*Stage)(nil)

func NewStage(targetDB float64, ffmpegBinary string, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{targetDB: targetDB, ffmpegBinary: ffmpegBinary, logger: logger}
}

func (s *Stage) Name() string          { return StageName }
func (s *Stage) ProcessorType() string { return ProcessorType }

// TargetDB returns the configured loudness target.
func (s *Stage) TargetDB() float64 { return s.targetDB }

func (s *Stage) ValidateInput(input string) bool {
	info, err := os.Stat(input)
	return err == nil && !info.IsDir()
}

// Gain returns the dB adjustment that moves a measured level to the target.
// Silent input receives no gain.
func (s *Stage) Gain(vol ffmpeg.Volume) float64 {
	if vol.Silent() {
		return 0
	}
	return s.targetDB - vol.MeanDB
}

func (s *Stage) Execute(ctx context.Context, input, workDir string) (pipeline.Outputs, error) {
	outDir := filepath.Join(workDir, OutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", OutputDirName, err)
	}
	logger := logging.WithContext(ctx, s.logger)

	vol, err := ffmpeg.VolumeDetect(ctx, s.ffmpegBinary, input)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, "measure level", "Failed to measure input loudness", err)
	}
	gain := s.Gain(vol)
	output := filepath.Join(outDir, "normalized_"+filepath.Base(input))
	logger.Info("applying normalization gain",
		logging.Float64("mean_db", vol.MeanDB),
		logging.Float64("max_db", vol.MaxDB),
		logging.Float64("target_db", s.targetDB),
		logging.Float64("gain_db", gain),
		logging.Bool("silent", vol.Silent()),
	)
	if err := ffmpeg.ApplyGain(ctx, s.ffmpegBinary, input, output, gain); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, "apply gain", "Failed to write normalized audio", err)
	}
	return pipeline.Outputs{"normalized": output}, nil
}
