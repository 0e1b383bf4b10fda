package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Transcode decodes input into a 16-bit PCM WAV file at output, preserving
// the source sample rate and channel layout.
func Transcode(ctx context.Context, binary, input, output string) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return errors.New("transcode: input and output are required")
	}
	return run(ctx, binary, "transcode",
		"-hide_banner", "-nostats", "-y",
		"-i", input,
		"-vn", "-sn", "-dn",
		"-c:a", "pcm_s16le",
		output,
	)
}

// ApplyGain writes input to output with gainDB applied to every sample. The
// output codec follows the output file extension.
func ApplyGain(ctx context.Context, binary, input, output string, gainDB float64) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return errors.New("apply gain: input and output are required")
	}
	filter := "volume=" + strconv.FormatFloat(gainDB, 'f', 4, 64) + "dB"
	return run(ctx, binary, "apply gain",
		"-hide_banner", "-nostats", "-y",
		"-i", input,
		"-vn", "-sn", "-dn",
		"-af", filter,
		output,
	)
}

func run(ctx context.Context, binary, operation string, args ...string) error {
	cmd := exec.CommandContext(ctx, defaultBinary(binary, "ffmpeg"), args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", operation, err, lastLines(string(output), 5))
	}
	return nil
}
