package pipeline

import "time"

// Status is the lifecycle state of a stage record or a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) validForStage() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) validForJob() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageRecord captures one stage's execution within a job.
type StageRecord struct {
	Name            string     `json:"name"`
	ProcessorType   string     `json:"processor_type"`
	Status          Status     `json:"status"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Error           *string    `json:"error"`
	DurationSeconds *float64   `json:"duration_seconds"`
}

func newStageRecord(stage Stage) StageRecord {
	return StageRecord{
		Name:          stage.Name(),
		ProcessorType: stage.ProcessorType(),
		Status:        StatusPending,
	}
}

func (r *StageRecord) start(at time.Time) {
	r.Status = StatusProcessing
	r.StartedAt = &at
}

func (r *StageRecord) complete(at time.Time) {
	r.Status = StatusCompleted
	r.CompletedAt = &at
	r.deriveDuration()
}

func (r *StageRecord) fail(at time.Time, message string) {
	r.Status = StatusFailed
	r.CompletedAt = &at
	r.Error = &message
	r.deriveDuration()
}

func (r *StageRecord) deriveDuration() {
	if r.StartedAt == nil || r.CompletedAt == nil {
		r.DurationSeconds = nil
		return
	}
	seconds := r.CompletedAt.Sub(*r.StartedAt).Seconds()
	r.DurationSeconds = &seconds
}

// ErrorText returns the recorded failure message, or "" when none exists.
func (r StageRecord) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Duration returns the recorded duration, or zero when it was never derived.
func (r StageRecord) Duration() time.Duration {
	if r.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*r.DurationSeconds * float64(time.Second))
}

func (r StageRecord) clone() StageRecord {
	out := r
	if r.StartedAt != nil {
		v := *r.StartedAt
		out.StartedAt = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		out.CompletedAt = &v
	}
	if r.Error != nil {
		v := *r.Error
		out.Error = &v
	}
	if r.DurationSeconds != nil {
		v := *r.DurationSeconds
		out.DurationSeconds = &v
	}
	return out
}
