package jobindex

import (
	"context"
	"log/slog"

	"audiopipe/internal/logging"
	"audiopipe/internal/pipeline"
)

// Observer records engine lifecycle events in the index. Index failures are
// logged and never interrupt the job.
type Observer struct {
	store  *Store
	logger *slog.Logger
}

// NewObserver wraps store as a pipeline.Observer.
func NewObserver(store *Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Observer{store: store, logger: logging.NewComponentLogger(logger, "jobindex")}
}

func (o *Observer) JobStarted(ctx context.Context, manifest *pipeline.Manifest) {
	o.record(ctx, manifest)
}

func (o *Observer) StageFinished(ctx context.Context, manifest *pipeline.Manifest, _ pipeline.StageRecord) {
	o.record(ctx, manifest)
}

func (o *Observer) JobFinished(ctx context.Context, manifest *pipeline.Manifest) {
	o.record(ctx, manifest)
}

// PersistFailed indexes the job as failed so listings do not advertise a
// completed job whose manifest is missing.
func (o *Observer) PersistFailed(ctx context.Context, manifest *pipeline.Manifest, err error) {
	if o == nil || o.store == nil || manifest == nil {
		return
	}
	o.record(ctx, manifest)
	if _, markErr := o.store.MarkFailed(ctx, manifest.JobID, "manifest not persisted: "+err.Error()); markErr != nil {
		o.warn(ctx, markErr)
	}
}

func (o *Observer) record(ctx context.Context, manifest *pipeline.Manifest) {
	if o == nil || o.store == nil {
		return
	}
	if err := o.store.Record(ctx, manifest); err != nil {
		o.warn(ctx, err)
	}
}

func (o *Observer) warn(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job index update failed", "job_index_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check "+o.store.Path()+" permissions or delete it to rebuild"),
		logging.String(logging.FieldImpact, "job listings may be stale"),
	)
}
