package separation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"audiopipe/internal/services"
)

// OutputDirName is the job subdirectory receiving separated stems.
const OutputDirName = "demucs_output"

// Separator splits an audio file into named stems.
type Separator interface {
	Name() string
	// Validate reports whether the backend is ready to run.
	Validate(ctx context.Context) error
	// SupportedTracks lists the stem names Separate produces, in order.
	SupportedTracks() []string
	// Separate writes stems beneath workDir and returns stem name to path.
	Separate(ctx context.Context, input, workDir string) (map[string]string, error)
}

// Settings parameterises backend construction.
type Settings struct {
	Model  string
	Device string
	Binary string
	Logger *slog.Logger
}

// Factory builds a Separator from settings.
type Factory func(Settings) (Separator, error)

// Registry maps backend names to factories. The zero value is empty and
// ready to use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(BackendDemucs, NewDemucs)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = make(map[string]Factory)
	}
	r.factories[name] = factory
}

// Names lists the registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	return slices.Contains(r.Names(), strings.ToLower(strings.TrimSpace(name)))
}

// Create builds the separator registered under name.
func (r *Registry) Create(name string, settings Settings) (Separator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(
			services.ErrConfiguration,
			"separation",
			"create separator",
			fmt.Sprintf("Unknown separator type: %s. Available: %s", name, strings.Join(r.Names(), ", ")),
			nil,
		)
	}
	separator, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("create separator %s: %w", key, err)
	}
	return separator, nil
}
