package decomposition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"audiopipe/internal/logging"
	"audiopipe/internal/pipeline"
)

const (
	// StageName identifies whole-track decomposition in manifests.
	StageName = "harmonic_percussive_separation"
	// ProcessorType is shared by both decomposition stages.
	ProcessorType = "decomposition"
	// OutputDirName is the job subdirectory for whole-track components.
	OutputDirName = "harmonic_percussive"
)

// Stage decomposes the job input into harmonic and percussive files.
type Stage struct {
	decomposer Decomposer
	logger     *slog.Logger
}

var _ pipeline.Stage = (*Stage)(nil)

// NewStage builds the whole-track decomposition stage.
func NewStage(decomposer Decomposer, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{decomposer: decomposer, logger: logger}
}

func (s *Stage) Name() string          { return StageName }
func (s *Stage) ProcessorType() string { return ProcessorType }

func (s *Stage) ValidateInput(input string) bool {
	return fileExists(input)
}

func (s *Stage) Execute(ctx context.Context, input, workDir string) (pipeline.Outputs, error) {
	outDir := filepath.Join(workDir, OutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", OutputDirName, err)
	}
	harmonic := filepath.Join(outDir, "harmonic.wav")
	percussive := filepath.Join(outDir, "percussive.wav")

	logging.WithContext(ctx, s.logger).Info("decomposing input", logging.String("input_file", input))
	if err := s.decomposer.Decompose(ctx, input, harmonic, percussive); err != nil {
		return nil, err
	}
	return pipeline.Outputs{
		"harmonic":   harmonic,
		"percussive": percussive,
	}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
