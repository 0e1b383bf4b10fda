// Package pipelinesetup assembles a pipeline.Engine from configuration.
package pipelinesetup

import (
	"fmt"
	"log/slog"
	"sort"

	"audiopipe/internal/composite"
	"audiopipe/internal/config"
	"audiopipe/internal/decomposition"
	"audiopipe/internal/logging"
	"audiopipe/internal/normalization"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/separation"
	"audiopipe/internal/services"
)

// Env carries the shared collaborators stage constructors draw on.
type Env struct {
	Config     *config.Config
	Logger     *slog.Logger
	Separators *separation.Registry
	Decomposer decomposition.Decomposer
}

// stageLogger applies any per-stage level override.
func (e Env) stageLogger(stage string) *slog.Logger {
	return logging.ForStage(e.Logger, e.Config, stage)
}

// Constructor builds one stage.
type Constructor func(Env) (pipeline.Stage, error)

// Catalog maps stage names to constructors.
type Catalog map[string]Constructor

// DefaultCatalog returns constructors for every built-in stage.
func DefaultCatalog() Catalog {
	return Catalog{
		config.StageSeparation: func(env Env) (pipeline.Stage, error) {
			cfg := env.Config
			if !env.Separators.Has(cfg.Separation.Backend) {
				return nil, services.Wrap(services.ErrConfiguration, "pipelinesetup", "separation backend",
					fmt.Sprintf("Unknown separator type: %s", cfg.Separation.Backend), nil)
			}
			logger := env.stageLogger(config.StageSeparation)
			return separation.NewStage(separation.StageOptions{
				Registry: env.Separators,
				Backend:  cfg.Separation.Backend,
				Settings: separation.Settings{
					Model:  cfg.Separation.Model,
					Device: cfg.Separation.Device,
					Binary: cfg.Separation.Binary,
					Logger: logger,
				},
				SupportedFormats: cfg.Limits.SupportedFormats,
				MaxFileSize:      cfg.MaxFileSizeBytes(),
				Logger:           logger,
			}), nil
		},
		config.StageSeparatedTracksHPSS: func(env Env) (pipeline.Stage, error) {
			return decomposition.NewTrackStage(env.Decomposer, env.stageLogger(config.StageSeparatedTracksHPSS)), nil
		},
		config.StageHarmonicPercussive: func(env Env) (pipeline.Stage, error) {
			return decomposition.NewStage(env.Decomposer, env.stageLogger(config.StageHarmonicPercussive)), nil
		},
		config.StageComposite: func(env Env) (pipeline.Stage, error) {
			return composite.NewStage(env.Config.FFmpegBinary(), env.Decomposer, env.stageLogger(config.StageComposite)), nil
		},
		config.StageNormalization: func(env Env) (pipeline.Stage, error) {
			return normalization.NewStage(env.Config.Normalization.TargetDB, env.Config.FFmpegBinary(), env.stageLogger(config.StageNormalization)), nil
		},
	}
}

// Names returns the catalog's stage names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stages builds the configured stages in pipeline.stages order.
func (c Catalog) Stages(env Env) ([]pipeline.Stage, error) {
	stages := make([]pipeline.Stage, 0, len(env.Config.Pipeline.Stages))
	for _, name := range env.Config.Pipeline.Stages {
		ctor, ok := c[name]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "pipelinesetup", "build stages",
				fmt.Sprintf("Unknown stage %q", name), nil)
		}
		stage, err := ctor(env)
		if err != nil {
			return nil, fmt.Errorf("build stage %s: %w", name, err)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// Options customise Build.
type Options struct {
	Catalog    Catalog
	Separators *separation.Registry
	Decomposer decomposition.Decomposer
	Observer   pipeline.Observer
}

// Build creates an engine with the configured stages registered.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*pipeline.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Separators == nil {
		opts.Separators = separation.NewRegistry()
	}
	if opts.Decomposer == nil {
		opts.Decomposer = decomposition.NewCommand(cfg.Decomposition.Command)
	}

	stages, err := opts.Catalog.Stages(Env{
		Config:     cfg,
		Logger:     logger,
		Separators: opts.Separators,
		Decomposer: opts.Decomposer,
	})
	if err != nil {
		return nil, err
	}

	engine, err := pipeline.New(pipeline.Options{
		BaseDir:         cfg.Paths.OutputDir,
		Logger:          logger,
		Observer:        opts.Observer,
		PersistFailures: cfg.Pipeline.PersistFailedManifests,
	})
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if err := engine.AddStage(stage); err != nil {
			return nil, err
		}
	}
	return engine, nil
}
