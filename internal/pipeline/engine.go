package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"audiopipe/internal/logging"
	"audiopipe/internal/services"
	"audiopipe/internal/workspace"
)

// Options configures an Engine.
type Options struct {
	// BaseDir is the directory under which job directories are created.
	BaseDir string
	Logger  *slog.Logger
	// Clock defaults to time.Now. Timestamps are always stored in UTC.
	Clock func() time.Time
	// NewID defaults to random UUIDs.
	NewID    func() string
	Observer Observer
	// PersistFailures writes manifest.json for failed jobs as well as
	// completed ones, making failures visible through JobStatus.
	PersistFailures bool
}

// Engine runs jobs through its registered stages.
type Engine struct {
	root            *workspace.Root
	logger          *slog.Logger
	clock           func() time.Time
	newID           func() string
	observer        Observer
	persistFailures bool

	mu     sync.Mutex
	stages []Stage
	frozen bool
}

// New constructs an Engine rooted at opts.BaseDir, creating the directory if
// needed.
func New(opts Options) (*Engine, error) {
	root, err := workspace.Open(opts.BaseDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "open workspace", "Output directory is unavailable", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{
		root:            root,
		logger:          logging.NewComponentLogger(logger, "pipeline"),
		clock:           clock,
		newID:           newID,
		observer:        observer,
		persistFailures: opts.PersistFailures,
	}, nil
}

// BaseDir returns the directory holding job directories.
func (e *Engine) BaseDir() string {
	return e.root.Dir()
}

// Workspace exposes the job directory root.
func (e *Engine) Workspace() *workspace.Root {
	return e.root
}

// AddStage appends stage to the execution order. Stages are not checked for
// compatibility with one another. Once a job has started the order is fixed
// and AddStage returns ErrStagesFrozen.
func (e *Engine) AddStage(stage Stage) error {
	if stage == nil {
		return errors.New("stage is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return ErrStagesFrozen
	}
	e.stages = append(e.stages, stage)
	e.logger.Debug("stage registered",
		logging.String(logging.FieldStage, stage.Name()),
		logging.String("processor_type", stage.ProcessorType()),
		logging.Int("position", len(e.stages)),
	)
	return nil
}

// Stages returns the registered stages in execution order.
func (e *Engine) Stages() []Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Stage, len(e.stages))
	copy(out, e.stages)
	return out
}

func (e *Engine) freeze() []Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = true
	out := make([]Stage, len(e.stages))
	copy(out, e.stages)
	return out
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// Process runs input through every registered stage in order and returns the
// job's manifest. When a stage rejects the input or fails, the manifest is
// returned together with a *StageError describing the stage that stopped the
// job. If every stage completes but manifest.json cannot be written, the
// completed manifest comes back with an error wrapping ErrManifestNotPersisted
// and observers get PersistFailed instead of JobFinished. Stages receive ctx
// unchanged apart from job and stage annotations; the engine itself never
// cancels a job.
func (e *Engine) Process(ctx context.Context, input string) (*Manifest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	stages := e.freeze()
	jobID := e.newID()

	job, err := e.root.Create(jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "create job directory", "Failed to create job working directory", err)
	}
	defer func() {
		if err := job.Release(); err != nil {
			e.logger.Debug("job lock release failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}()

	jobCtx := logging.WithJob(ctx, jobID)
	logger := logging.WithContext(jobCtx, e.logger)
	manifest := newManifest(jobID, input, e.now(), len(stages))

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("input_file", input),
		logging.Int("stage_count", len(stages)),
		logging.String("work_dir", job.Dir()),
	)
	e.observer.JobStarted(jobCtx, manifest.Clone())

	for _, stage := range stages {
		record, outputs, stageErr := e.runStage(jobCtx, logger, stage, input, job.Dir())
		manifest.Stages = append(manifest.Stages, record)
		e.observer.StageFinished(jobCtx, manifest.Clone(), record.clone())
		if stageErr != nil {
			manifest.Status = StatusFailed
			if e.persistFailures {
				if err := e.persist(job, manifest, logger); err != nil {
					logging.WarnWithContext(logger, "failed manifest not persisted", "manifest_persist_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check output_dir free space and permissions"),
						logging.String(logging.FieldImpact, "job status lookups will report the job as unknown"),
					)
				}
			}
			e.observer.JobFinished(jobCtx, manifest.Clone())
			return manifest, stageErr
		}
		maps.Copy(manifest.Outputs, outputs)
	}

	manifest.Status = StatusCompleted
	if err := e.persist(job, manifest, logger); err != nil {
		logging.ErrorWithContext(logger, "completed manifest not persisted", "manifest_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check output_dir free space and permissions"),
			logging.String(logging.FieldImpact, "outputs exist on disk but job status lookups will report the job as unknown"),
		)
		e.observer.PersistFailed(jobCtx, manifest.Clone(), err)
		return manifest, fmt.Errorf("%w: %w", ErrManifestNotPersisted, err)
	}
	e.observer.JobFinished(jobCtx, manifest.Clone())
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("stage_count", len(manifest.Stages)),
		logging.Int("output_count", len(manifest.Outputs)),
	)
	return manifest, nil
}

func (e *Engine) runStage(ctx context.Context, jobLogger *slog.Logger, stage Stage, input, workDir string) (StageRecord, Outputs, *StageError) {
	name := stage.Name()
	stageCtx := logging.WithStage(ctx, name)
	logger := jobLogger.With(logging.Args(logging.String(logging.FieldStage, name))...)
	record := newStageRecord(stage)

	if !validate(stage, input) {
		stageErr := validationError(name)
		record.fail(e.now(), stageErr.Message)
		logging.ErrorWithContext(logger, "stage rejected input", "stage_failure",
			logging.String("failure_kind", string(KindValidation)),
			logging.String("error_message", stageErr.Message),
			logging.String(logging.FieldErrorHint, "check the input file format and size"),
		)
		return record, nil, stageErr
	}

	record.start(e.now())
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processor_type", record.ProcessorType),
	)

	outputs, err := execute(stageCtx, stage, input, workDir)
	if err != nil {
		record.fail(e.now(), err.Error())
		message := strings.TrimSpace(services.Details(err).Message)
		if message == "" {
			message = err.Error()
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("failure_kind", string(KindExecution)),
			logging.String("error_message", message),
			logging.String("error_kind", services.Kind(err)),
			logging.Float64("duration_seconds", *record.DurationSeconds),
			logging.Error(err),
		)
		return record, nil, executionError(name, err)
	}

	record.complete(e.now())
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("output_count", len(outputs)),
		logging.Float64("duration_seconds", *record.DurationSeconds),
	)
	return record, outputs, nil
}

func validate(stage Stage, input string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return stage.ValidateInput(input)
}

func execute(ctx context.Context, stage Stage, input, workDir string) (outputs Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return stage.Execute(ctx, input, workDir)
}

func (e *Engine) persist(job *workspace.Job, manifest *Manifest, logger *slog.Logger) error {
	data, err := manifest.Encode()
	if err != nil {
		return err
	}
	if err := job.WriteFile(ManifestFileName, data); err != nil {
		return err
	}
	logger.Info("manifest persisted",
		logging.String(logging.FieldEventType, "manifest_persisted"),
		logging.String("status", string(manifest.Status)),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// JobStatus loads the persisted manifest for jobID. It returns nil and no
// error when no manifest exists: the id is unknown or malformed, the job is
// still running, or it failed without its manifest being persisted. Every
// call returns a freshly decoded manifest.
func (e *Engine) JobStatus(ctx context.Context, jobID string) (*Manifest, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	data, err := e.root.ReadFile(jobID, ManifestFileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, workspace.ErrInvalidJobID) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest for job %s: %w", jobID, err)
	}
	manifest, err := DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	return manifest, nil
}

// Outputs returns the merged outputs of a persisted job, or nil when the job
// has no manifest.
func (e *Engine) Outputs(ctx context.Context, jobID string) (Outputs, error) {
	manifest, err := e.JobStatus(ctx, jobID)
	if err != nil || manifest == nil {
		return nil, err
	}
	return manifest.Outputs, nil
}
