package decomposition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"audiopipe/internal/services"
)

// Decomposer splits an audio file into harmonic and percussive components.
type Decomposer interface {
	Decompose(ctx context.Context, input, harmonic, percussive string) error
}

// DefaultCommand is the helper invoked when none is configured.
const DefaultCommand = "audiopipe-hpss"

// Command runs an external HPSS helper.
type Command struct {
	Binary string
	Args   []string
}

// NewCommand parses a configured command line. Extra words after the binary
// are passed before the input and output paths.
func NewCommand(commandLine string) *Command {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return &Command{Binary: DefaultCommand}
	}
	return &Command{Binary: fields[0], Args: fields[1:]}
}

func (c *Command) Decompose(ctx context.Context, input, harmonic, percussive string) error {
	if c == nil || strings.TrimSpace(c.Binary) == "" {
		return services.Wrap(services.ErrConfiguration, "decomposition", "run helper", "Decomposition command not configured", nil)
	}
	args := append(append([]string(nil), c.Args...), input, harmonic, percussive)
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "decomposition", "run helper",
			"Harmonic/percussive separation failed", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output))))
	}
	for _, path := range []string{harmonic, percussive} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return services.Wrap(services.ErrExternalTool, "decomposition", "verify outputs",
					fmt.Sprintf("Helper did not write %s", path), err)
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return nil
}
