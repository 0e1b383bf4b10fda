package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"audiopipe/internal/config"
	"audiopipe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// SystemRequirements lists the external tools the configured stages need.
func SystemRequirements(cfg *config.Config) []deps.Requirement {
	enabled := make(map[string]bool, len(cfg.Pipeline.Stages))
	for _, stage := range cfg.Pipeline.Stages {
		enabled[stage] = true
	}
	needsDecomposer := enabled[config.StageHarmonicPercussive] || enabled[config.StageSeparatedTracksHPSS] || enabled[config.StageComposite]
	needsFFmpeg := enabled[config.StageComposite] || enabled[config.StageNormalization]

	return []deps.Requirement{
		{
			Name:        "Demucs",
			Command:     cfg.Separation.Binary,
			Description: "Required for audio_separation",
			Optional:    !enabled[config.StageSeparation],
		},
		{
			Name:        "HPSS helper",
			Command:     firstField(cfg.Decomposition.Command),
			Description: "Required for harmonic/percussive stages",
			Optional:    !needsDecomposer,
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for composite and normalization stages",
			Optional:    !needsFFmpeg,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Used for input inspection in process summaries",
			Optional:    true,
		},
	}
}

// CheckSystemDeps evaluates all external tools for the given config.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(SystemRequirements(cfg))
}

func firstField(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
