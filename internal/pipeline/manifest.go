package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// ManifestVersion is the schema version written into every manifest.
	ManifestVersion = "1.0"
	// ManifestFileName is the manifest's name inside a job directory.
	ManifestFileName = "manifest.json"
	// MetadataProcessorCount records how many stages were registered when the
	// job started.
	MetadataProcessorCount = "processor_count"
)

// Manifest is the durable record of one job.
type Manifest struct {
	JobID     string         `json:"job_id"`
	InputFile string         `json:"input_file"`
	CreatedAt time.Time      `json:"created_at"`
	Version   string         `json:"version"`
	Stages    []StageRecord  `json:"stages"`
	Outputs   Outputs        `json:"outputs"`
	Metadata  map[string]any `json:"metadata"`
	Status    Status         `json:"status"`
}

func newManifest(jobID, input string, createdAt time.Time, stageCount int) *Manifest {
	return &Manifest{
		JobID:     jobID,
		InputFile: input,
		CreatedAt: createdAt,
		Version:   ManifestVersion,
		Stages:    make([]StageRecord, 0, stageCount),
		Outputs:   Outputs{},
		Metadata:  map[string]any{MetadataProcessorCount: stageCount},
		Status:    StatusProcessing,
	}
}

// Clone returns a deep copy so callers can hand the manifest to observers
// without sharing mutable state.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	out.Stages = make([]StageRecord, len(m.Stages))
	for i, record := range m.Stages {
		out.Stages[i] = record.clone()
	}
	out.Outputs = maps.Clone(m.Outputs)
	if out.Outputs == nil {
		out.Outputs = Outputs{}
	}
	out.Metadata = maps.Clone(m.Metadata)
	return &out
}

// FailedStage returns the failed record that stopped the job, if any.
func (m *Manifest) FailedStage() (StageRecord, bool) {
	if m == nil || len(m.Stages) == 0 {
		return StageRecord{}, false
	}
	last := m.Stages[len(m.Stages)-1]
	if last.Status != StatusFailed {
		return StageRecord{}, false
	}
	return last, true
}

// ProcessorCount returns the processor_count metadata entry. Decoded
// manifests carry JSON numbers, so float64 values are accepted.
func (m *Manifest) ProcessorCount() (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m.Metadata[MetadataProcessorCount].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	doc := m.Clone()
	if doc.Stages == nil {
		doc.Stages = []StageRecord{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

type manifestDoc struct {
	JobID     *string            `json:"job_id"`
	InputFile *string            `json:"input_file"`
	CreatedAt *time.Time         `json:"created_at"`
	Version   *string            `json:"version"`
	Stages    *[]stageRecordDoc  `json:"stages"`
	Outputs   *map[string]string `json:"outputs"`
	Metadata  *map[string]any    `json:"metadata"`
	Status    *string            `json:"status"`
}

type stageRecordDoc struct {
	Name            *string    `json:"name"`
	ProcessorType   *string    `json:"processor_type"`
	Status          *string    `json:"status"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Error           *string    `json:"error"`
	DurationSeconds *float64   `json:"duration_seconds"`
}

// DecodeManifest parses a persisted manifest. Unknown fields are ignored.
// Every top-level field Encode writes, metadata included, is required;
// missing ones yield ErrManifestInvalid and a major version other
// than the current one yields ErrUnsupportedVersion.
func DecodeManifest(data []byte) (*Manifest, error) {
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if doc.Version == nil {
		return nil, missingField("version")
	}
	if err := checkVersion(*doc.Version); err != nil {
		return nil, err
	}
	switch {
	case doc.JobID == nil || strings.TrimSpace(*doc.JobID) == "":
		return nil, missingField("job_id")
	case doc.InputFile == nil:
		return nil, missingField("input_file")
	case doc.CreatedAt == nil:
		return nil, missingField("created_at")
	case doc.Stages == nil:
		return nil, missingField("stages")
	case doc.Outputs == nil:
		return nil, missingField("outputs")
	case doc.Metadata == nil:
		return nil, missingField("metadata")
	case doc.Status == nil:
		return nil, missingField("status")
	}
	status := Status(*doc.Status)
	if !status.validForJob() {
		return nil, fmt.Errorf("%w: unknown job status %q", ErrManifestInvalid, *doc.Status)
	}

	manifest := &Manifest{
		JobID:     *doc.JobID,
		InputFile: *doc.InputFile,
		CreatedAt: *doc.CreatedAt,
		Version:   *doc.Version,
		Stages:    make([]StageRecord, 0, len(*doc.Stages)),
		Outputs:   Outputs(*doc.Outputs),
		Metadata:  *doc.Metadata,
		Status:    status,
	}
	if manifest.Outputs == nil {
		manifest.Outputs = Outputs{}
	}
	if manifest.Metadata == nil {
		manifest.Metadata = map[string]any{}
	}
	for i, raw := range *doc.Stages {
		record, err := raw.record(i)
		if err != nil {
			return nil, err
		}
		manifest.Stages = append(manifest.Stages, record)
	}
	return manifest, nil
}

func (d stageRecordDoc) record(index int) (StageRecord, error) {
	switch {
	case d.Name == nil:
		return StageRecord{}, missingField(fmt.Sprintf("stages[%d].name", index))
	case d.ProcessorType == nil:
		return StageRecord{}, missingField(fmt.Sprintf("stages[%d].processor_type", index))
	case d.Status == nil:
		return StageRecord{}, missingField(fmt.Sprintf("stages[%d].status", index))
	}
	status := Status(*d.Status)
	if !status.validForStage() {
		return StageRecord{}, fmt.Errorf("%w: unknown status %q for stage %s", ErrManifestInvalid, *d.Status, *d.Name)
	}
	return StageRecord{
		Name:            *d.Name,
		ProcessorType:   *d.ProcessorType,
		Status:          status,
		StartedAt:       d.StartedAt,
		CompletedAt:     d.CompletedAt,
		Error:           d.Error,
		DurationSeconds: d.DurationSeconds,
	}, nil
}

func checkVersion(version string) error {
	major, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	current, _, _ := strings.Cut(ManifestVersion, ".")
	if major != current {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing %s", ErrManifestInvalid, name)
}
