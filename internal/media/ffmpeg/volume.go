package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Volume holds the levels reported by ffmpeg's volumedetect filter, in dBFS.
// A silent input reports -Inf for both values.
type Volume struct {
	MeanDB float64
	MaxDB  float64
}

// Silent reports whether the input is digital silence (mean level -Inf).
// Very quiet input with any signal at all is not silent.
func (v Volume) Silent() bool {
	return math.IsInf(v.MeanDB, -1)
}

// VolumeDetect measures the RMS (mean) and peak level of path.
func VolumeDetect(ctx context.Context, binary, path string) (Volume, error) {
	binary = defaultBinary(binary, "ffmpeg")
	if strings.TrimSpace(path) == "" {
		return Volume{}, errors.New("volumedetect: empty path")
	}
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-nostats", "-i", path, "-af", "volumedetect", "-vn", "-sn", "-dn", "-f", "null", "-")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Volume{}, fmt.Errorf("volumedetect: %w: %s", err, lastLines(string(output), 5))
	}
	return ParseVolumeDetect(string(output))
}

// ParseVolumeDetect extracts mean_volume and max_volume from ffmpeg output.
func ParseVolumeDetect(output string) (Volume, error) {
	var (
		vol               Volume
		haveMean, haveMax bool
	)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := levelAfter(line, "mean_volume:"); ok {
			vol.MeanDB = value
			haveMean = true
		}
		if value, ok := levelAfter(line, "max_volume:"); ok {
			vol.MaxDB = value
			haveMax = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Volume{}, fmt.Errorf("volumedetect: read output: %w", err)
	}
	if !haveMean {
		return Volume{}, errors.New("volumedetect: mean_volume not reported")
	}
	if !haveMax {
		vol.MaxDB = vol.MeanDB
	}
	return vol, nil
}

func levelAfter(line, key string) (float64, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(line[idx+len(key):])
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
