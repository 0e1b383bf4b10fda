package separation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"audiopipe/internal/fileutil"
	"audiopipe/internal/logging"
	"audiopipe/internal/services"
)

const (
	// BackendDemucs is the registry name of the Demucs backend.
	BackendDemucs = "demucs"

	defaultDemucsModel  = "htdemucs_ft"
	defaultDemucsDevice = "cpu"
)

var demucsTracks = []string{"drums", "bass", "other", "vocals"}

// Demucs runs the demucs command-line separator.
type Demucs struct {
	binary string
	model  string
	device string
	logger *slog.Logger
}

// NewDemucs is the Factory for the Demucs backend.
func NewDemucs(settings Settings) (Separator, error) {
	d := &Demucs{
		binary: strings.TrimSpace(settings.Binary),
		model:  strings.TrimSpace(settings.Model),
		device: strings.TrimSpace(settings.Device),
		logger: settings.Logger,
	}
	if d.binary == "" {
		d.binary = BackendDemucs
	}
	if d.model == "" {
		d.model = defaultDemucsModel
	}
	if d.device == "" {
		d.device = defaultDemucsDevice
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	d.logger = d.logger.With(logging.Args(logging.String("separator_model", d.model))...)
	return d, nil
}

func (d *Demucs) Name() string {
	return BackendDemucs
}

func (d *Demucs) SupportedTracks() []string {
	return append([]string(nil), demucsTracks...)
}

// Validate checks that the demucs executable can be found.
func (d *Demucs) Validate(context.Context) error {
	if _, err := exec.LookPath(d.binary); err != nil {
		return services.Wrap(services.ErrConfiguration, "separation", "locate demucs",
			fmt.Sprintf("Separator binary %q not found; install demucs or set separation.binary", d.binary), err)
	}
	return nil
}

// Separate runs demucs into a scratch directory and moves each stem to
// <workDir>/demucs_output/<stem>.wav.
func (d *Demucs) Separate(ctx context.Context, input, workDir string) (map[string]string, error) {
	outputDir := filepath.Join(workDir, OutputDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", OutputDirName, err)
	}
	scratch, err := os.MkdirTemp(workDir, ".demucs-*")
	if err != nil {
		return nil, fmt.Errorf("create demucs scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	args := []string{"-n", d.model, "-d", d.device, "-o", scratch, input}
	d.logger.Info("separator started",
		logging.String(logging.FieldEventType, "separator_start"),
		logging.String("device", d.device),
		logging.String("command", d.binary+" "+strings.Join(args, " ")),
	)
	cmd := exec.CommandContext(ctx, d.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "separation", "run demucs",
			"Demucs separation failed", fmt.Errorf("%w: %s", err, tail(string(output))))
	}

	// demucs writes <out>/<model>/<input stem>/<track>.wav
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(scratch, d.model, base)
	outputs := make(map[string]string, len(demucsTracks))
	for _, track := range demucsTracks {
		src := filepath.Join(produced, track+".wav")
		dst := filepath.Join(outputDir, track+".wav")
		if err := fileutil.MoveFile(src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, services.Wrap(services.ErrExternalTool, "separation", "collect stems",
					fmt.Sprintf("Demucs did not produce the %s stem", track), err)
			}
			return nil, fmt.Errorf("move %s stem: %w", track, err)
		}
		outputs[track] = dst
		d.logger.Debug("stem saved", logging.String("track", track), logging.String("path", dst))
	}
	return outputs, nil
}

func tail(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
