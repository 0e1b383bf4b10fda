// Package composite implements the composite_track_creation stage: the job
// input is decoded to a reference WAV and split into harmonic and percussive
// components alongside it.
package composite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"audiopipe/internal/decomposition"
	"audiopipe/internal/logging"
	"audiopipe/internal/media/ffmpeg"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/services"
)

const (
	StageName     = "composite_track_creation"
	ProcessorType = "composition"
	OutputDirName = "composite"
)

// Stage builds composite/main.wav and its harmonic and percussive parts.
type Stage struct {
	ffmpegBinary string
	decomposer   decomposition.Decomposer
	logger       *slog.Logger
}

var _ pipeline.Stage = (*Stage)(nil)

func NewStage(ffmpegBinary string, decomposer decomposition.Decomposer, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{ffmpegBinary: ffmpegBinary, decomposer: decomposer, logger: logger}
}

func (s *Stage) Name() string          { return StageName }
func (s *Stage) ProcessorType() string { return ProcessorType }

func (s *Stage) ValidateInput(input string) bool {
	info, err := os.Stat(input)
	return err == nil && !info.IsDir()
}

func (s *Stage) Execute(ctx context.Context, input, workDir string) (pipeline.Outputs, error) {
	outDir := filepath.Join(workDir, OutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", OutputDirName, err)
	}
	mainPath := filepath.Join(outDir, "main.wav")
	harmonic := filepath.Join(outDir, "main_harmonic.wav")
	percussive := filepath.Join(outDir, "main_percussive.wav")

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("decoding composite reference", logging.String("input_file", input))
	if err := ffmpeg.Transcode(ctx, s.ffmpegBinary, input, mainPath); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, "decode input", "Failed to decode input audio", err)
	}
	if err := s.decomposer.Decompose(ctx, mainPath, harmonic, percussive); err != nil {
		return nil, err
	}
	logger.Info("composite track created")
	return pipeline.Outputs{
		"main":            mainPath,
		"main_harmonic":   harmonic,
		"main_percussive": percussive,
	}, nil
}
