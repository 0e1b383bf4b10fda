package pipeline

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Outputs maps logical output names to artifact paths.
type Outputs map[string]string

// Stage is one named unit of work in a pipeline.
//
// Stage values are shared by every job an Engine runs, so any state a stage
// initialises lazily must be safe for concurrent use.
type Stage interface {
	// Name is the stable identifier recorded in the manifest.
	Name() string
	// ProcessorType is an informational tag recorded alongside the name.
	ProcessorType() string
	// ValidateInput reports whether the stage can consume input. It returns
	// false for unsuitable input instead of panicking.
	ValidateInput(input string) bool
	// Execute runs the stage against input, writing artifacts beneath
	// workDir. Returning no outputs is a successful run.
	Execute(ctx context.Context, input, workDir string) (Outputs, error)
}

var titleCaser = cases.Title(language.Und)

// DisplayName turns a stage identifier such as "audio_separation" into a
// label suitable for terminal output ("Audio Separation").
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
