package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"audiopipe/internal/pipeline"
)

const validManifest = `{
  "job_id": "abc",
  "input_file": "/music/song.wav",
  "created_at": "2026-03-01T12:00:00Z",
  "version": "1.0",
  "stages": [
    {
      "name": "normalization",
      "processor_type": "audio_processing",
      "status": "completed",
      "started_at": "2026-03-01T12:00:01Z",
      "completed_at": "2026-03-01T12:00:03Z",
      "error": null,
      "duration_seconds": 2
    }
  ],
  "outputs": {"normalized": "/out/abc/normalized/normalized_song.wav"},
  "metadata": {"processor_count": 1},
  "status": "completed",
  "future_field": {"ignored": true}
}`

func TestDecodeManifestAcceptsUnknownFields(t *testing.T) {
	manifest, err := pipeline.DecodeManifest([]byte(validManifest))
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	if manifest.JobID != "abc" || manifest.Status != pipeline.StatusCompleted {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if len(manifest.Stages) != 1 || manifest.Stages[0].Duration().Seconds() != 2 {
		t.Fatalf("unexpected stages %+v", manifest.Stages)
	}
	if manifest.Outputs["normalized"] == "" {
		t.Fatalf("outputs missing: %v", manifest.Outputs)
	}
}

func TestDecodeManifestRejectsMissingFields(t *testing.T) {
	for _, field := range []string{`"job_id": "abc",`, `"status": "completed",`, `"created_at": "2026-03-01T12:00:00Z",`, `"processor_type": "audio_processing",`, `"metadata": {"processor_count": 1},`} {
		doc := strings.Replace(validManifest, field, "", 1)
		if doc == validManifest {
			t.Fatalf("fixture does not contain %s", field)
		}
		if _, err := pipeline.DecodeManifest([]byte(doc)); !errors.Is(err, pipeline.ErrManifestInvalid) {
			t.Errorf("removing %s: expected ErrManifestInvalid, got %v", field, err)
		}
	}
}

func TestDecodeManifestRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"job status":   strings.Replace(validManifest, `"status": "completed",
  "future_field"`, `"status": "exploded",
  "future_field"`, 1),
		"stage status": strings.Replace(validManifest, `"status": "completed",
      "started_at"`, `"status": "paused",
      "started_at"`, 1),
		"not json": "{",
	}
	for name, doc := range cases {
		if _, err := pipeline.DecodeManifest([]byte(doc)); !errors.Is(err, pipeline.ErrManifestInvalid) {
			t.Errorf("%s: expected ErrManifestInvalid, got %v", name, err)
		}
	}
}

func TestDecodeManifestVersionCheck(t *testing.T) {
	minor := strings.Replace(validManifest, `"version": "1.0"`, `"version": "1.3"`, 1)
	if _, err := pipeline.DecodeManifest([]byte(minor)); err != nil {
		t.Fatalf("minor version bump should decode: %v", err)
	}
	major := strings.Replace(validManifest, `"version": "1.0"`, `"version": "2.0"`, 1)
	if _, err := pipeline.DecodeManifest([]byte(major)); !errors.Is(err, pipeline.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestEncodeWritesNullableFields(t *testing.T) {
	manifest, err := pipeline.DecodeManifest([]byte(validManifest))
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	data, err := manifest.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"error": null`, `"version": "1.0"`, `"created_at": "2026-03-01T12:00:00Z"`} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded manifest missing %s:\n%s", want, text)
		}
	}
}
