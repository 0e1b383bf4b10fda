package separation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"audiopipe/internal/logging"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/services"
)

const (
	// StageName identifies the separation stage in manifests.
	StageName = "audio_separation"
	// ProcessorType is the informational tag recorded for the stage.
	ProcessorType = "separator"
)

// StageOptions configures the separation stage.
type StageOptions struct {
	Registry *Registry
	Backend  string
	Settings Settings
	// SupportedFormats lists accepted extensions without the leading dot.
	SupportedFormats []string
	// MaxFileSize bounds the input size in bytes; zero disables the check.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Stage splits the job input into stems.
type Stage struct {
	opts   StageOptions
	logger *slog.Logger

	mu        sync.Mutex
	separator Separator
}

var _ pipeline.Stage = (*Stage)(nil)

// NewStage builds the separation stage. The separator itself is created on
// first execution.
func NewStage(opts StageOptions) *Stage {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if strings.TrimSpace(opts.Backend) == "" {
		opts.Backend = BackendDemucs
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Settings.Logger == nil {
		opts.Settings.Logger = logger
	}
	formats := make([]string, 0, len(opts.SupportedFormats))
	for _, f := range opts.SupportedFormats {
		formats = append(formats, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), ".")))
	}
	opts.SupportedFormats = formats
	return &Stage{opts: opts, logger: logger}
}

func (s *Stage) Name() string          { return StageName }
func (s *Stage) ProcessorType() string { return ProcessorType }

// ValidateInput accepts existing files with a supported extension within
// the size limit.
func (s *Stage) ValidateInput(input string) bool {
	info, err := os.Stat(input)
	if err != nil || info.IsDir() {
		s.logger.Warn("input file not found",
			logging.String("input_file", input),
			logging.String(logging.FieldEventType, "input_rejected"),
		)
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input), "."))
	if len(s.opts.SupportedFormats) > 0 && !slices.Contains(s.opts.SupportedFormats, ext) {
		s.logger.Warn("unsupported audio format",
			logging.String("input_file", input),
			logging.String("extension", ext),
			logging.String(logging.FieldEventType, "input_rejected"),
		)
		return false
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		s.logger.Warn("input file too large",
			logging.String("input_file", input),
			logging.Int64("size_bytes", info.Size()),
			logging.Int64("max_bytes", s.opts.MaxFileSize),
			logging.String(logging.FieldEventType, "input_rejected"),
		)
		return false
	}
	return true
}

func (s *Stage) Execute(ctx context.Context, input, workDir string) (pipeline.Outputs, error) {
	separator, err := s.separatorFor()
	if err != nil {
		return nil, err
	}
	if err := separator.Validate(ctx); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "validate separator",
			"Separator model not properly initialized", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("separation started",
		logging.String("separator", separator.Name()),
		logging.String("input_file", input),
	)
	stems, err := separator.Separate(ctx, input, workDir)
	if err != nil {
		return nil, err
	}
	logger.Info("separation completed", logging.Int("track_count", len(stems)))
	return pipeline.Outputs(stems), nil
}

func (s *Stage) separatorFor() (Separator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.separator != nil {
		return s.separator, nil
	}
	separator, err := s.opts.Registry.Create(s.opts.Backend, s.opts.Settings)
	if err != nil {
		return nil, err
	}
	s.separator = separator
	return separator, nil
}
