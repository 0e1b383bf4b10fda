package pipeline

import "context"

// Observer receives job lifecycle notifications. Each call gets its own copy
// of the manifest. Observers run on the job's goroutine and must not block
// for long; failures are the observer's to log.
type Observer interface {
	JobStarted(ctx context.Context, manifest *Manifest)
	StageFinished(ctx context.Context, manifest *Manifest, record StageRecord)
	JobFinished(ctx context.Context, manifest *Manifest)
	// PersistFailed replaces JobFinished for a job whose stages all
	// completed but whose manifest could not be written.
	PersistFailed(ctx context.Context, manifest *Manifest, err error)
}

type nopObserver struct{}

func (nopObserver) JobStarted(context.Context, *Manifest)                 {}
func (nopObserver) StageFinished(context.Context, *Manifest, StageRecord) {}
func (nopObserver) JobFinished(context.Context, *Manifest)                {}
func (nopObserver) PersistFailed(context.Context, *Manifest, error)       {}

// Observers fans notifications out to each observer in order.
type Observers []Observer

func (o Observers) JobStarted(ctx context.Context, manifest *Manifest) {
	for _, obs := range o {
		if obs != nil {
			obs.JobStarted(ctx, manifest.Clone())
		}
	}
}

func (o Observers) StageFinished(ctx context.Context, manifest *Manifest, record StageRecord) {
	for _, obs := range o {
		if obs != nil {
			obs.StageFinished(ctx, manifest.Clone(), record.clone())
		}
	}
}

func (o Observers) JobFinished(ctx context.Context, manifest *Manifest) {
	for _, obs := range o {
		if obs != nil {
			obs.JobFinished(ctx, manifest.Clone())
		}
	}
}

func (o Observers) PersistFailed(ctx context.Context, manifest *Manifest, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.PersistFailed(ctx, manifest.Clone(), err)
		}
	}
}
