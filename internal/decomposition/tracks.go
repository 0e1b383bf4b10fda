package decomposition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"audiopipe/internal/logging"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/separation"
)

const (
	// TrackStageName identifies per-stem decomposition in manifests.
	TrackStageName = "separated_track_harmonic_percussive"
	// TrackOutputDirName is the job subdirectory for per-stem components.
	TrackOutputDirName = "separated_harmonic_percussive"
)

// TrackNames lists the stems TrackStage looks for, in processing order.
var TrackNames = []string{"vocals", "drums", "bass", "other"}

// TrackStage decomposes each separated stem found in the job directory.
type TrackStage struct {
	decomposer Decomposer
	logger     *slog.Logger
}

var _ pipeline.Stage = (*TrackStage)(nil)

// NewTrackStage builds the per-stem decomposition stage.
func NewTrackStage(decomposer Decomposer, logger *slog.Logger) *TrackStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TrackStage{decomposer: decomposer, logger: logger}
}

func (s *TrackStage) Name() string          { return TrackStageName }
func (s *TrackStage) ProcessorType() string { return ProcessorType }

func (s *TrackStage) ValidateInput(input string) bool {
	return fileExists(input)
}

// Execute returns no outputs when the separation stems are absent. A stem
// that fails to decompose is logged and skipped.
func (s *TrackStage) Execute(ctx context.Context, _ string, workDir string) (pipeline.Outputs, error) {
	logger := logging.WithContext(ctx, s.logger)
	stemDir := filepath.Join(workDir, separation.OutputDirName)
	if info, err := os.Stat(stemDir); err != nil || !info.IsDir() {
		logging.WarnWithContext(logger, "separated stems not found; skipping per-track decomposition", "stems_missing",
			logging.String("stem_dir", stemDir),
			logging.String(logging.FieldErrorHint, "run audio_separation before this stage"),
			logging.String(logging.FieldImpact, "no per-track harmonic/percussive outputs"),
		)
		return pipeline.Outputs{}, nil
	}

	outDir := filepath.Join(workDir, TrackOutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", TrackOutputDirName, err)
	}

	outputs := pipeline.Outputs{}
	for _, track := range TrackNames {
		stem := filepath.Join(stemDir, track+".wav")
		if !fileExists(stem) {
			logger.Warn("stem not found",
				logging.String("track", track),
				logging.String(logging.FieldEventType, "stem_missing"),
				logging.String(logging.FieldImpact, "track skipped"),
			)
			continue
		}
		harmonic := filepath.Join(outDir, track+"_harmonic.wav")
		percussive := filepath.Join(outDir, track+"_percussive.wav")
		if err := s.decomposer.Decompose(ctx, stem, harmonic, percussive); err != nil {
			logger.Error("track decomposition failed",
				logging.String("track", track),
				logging.String(logging.FieldEventType, "track_decomposition_failed"),
				logging.Error(err),
			)
			continue
		}
		outputs[track+"_harmonic"] = harmonic
		outputs[track+"_percussive"] = percussive
		logger.Debug("track decomposed", logging.String("track", track))
	}
	logger.Info("per-track decomposition completed", logging.Int("output_count", len(outputs)))
	return outputs, nil
}
