package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audiopipe/internal/logging"
	"audiopipe/internal/media/ffmpeg"
	"audiopipe/internal/pipeline"
	"audiopipe/internal/preflight"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run an audio file through the configured pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			input, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}

			stderr := cmd.ErrOrStderr()
			for _, failed := range preflight.Failed(preflight.RunAll(cmd.Context(), cfg)) {
				fmt.Fprintln(stderr, renderStatusLine(failed.Name, statusWarn, failed.Detail, false))
			}

			store, err := ctx.openIndex()
			if err != nil {
				logging.WarnWithContext(logger, "job index unavailable; continuing without it", "index_unavailable",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.log_dir permissions"),
				)
				store = nil
			} else {
				defer store.Close()
			}

			engine, err := ctx.buildEngine(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !jsonOutput {
				if summary := inputSummary(cmd, cfg.FFprobeBinary(), input); summary != "" {
					fmt.Fprintln(out, summary)
				}
			}

			manifest, runErr := engine.Process(cmd.Context(), input)
			if jsonOutput && manifest != nil {
				if err := writeJSON(cmd, manifest); err != nil {
					return err
				}
			}
			if runErr != nil {
				var stageErr *pipeline.StageError
				if !errors.As(runErr, &stageErr) {
					return runErr
				}
				fmt.Fprintf(stderr, "Processing failed at %s: %s\n", pipeline.DisplayName(stageErr.Stage), stageErr.Message)
				if manifest != nil {
					fmt.Fprintf(stderr, "Job: %s\n", manifest.JobID)
				}
				return errSilentFailure
			}
			if jsonOutput {
				return nil
			}
			printManifest(out, manifest, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the job manifest as JSON")
	return cmd
}

// inputSummary describes the input via ffprobe. It returns "" when ffprobe is
// unavailable or cannot read the file; the pipeline reports real problems.
func inputSummary(cmd *cobra.Command, ffprobeBinary, input string) string {
	if _, err := exec.LookPath(ffprobeBinary); err != nil {
		return ""
	}
	result, err := ffmpeg.Probe(cmd.Context(), ffprobeBinary, input)
	if err != nil {
		return ""
	}
	parts := []string{filepath.Base(input)}
	if info, err := os.Stat(input); err == nil {
		parts = append(parts, humanize.IBytes(uint64(info.Size())))
	}
	if seconds := result.DurationSeconds(); seconds > 0 {
		parts = append(parts, formatSeconds(seconds))
	}
	if rate := result.SampleRate(); rate > 0 {
		parts = append(parts, fmt.Sprintf("%s Hz", humanize.Comma(int64(rate))))
	}
	if stream, ok := result.AudioStream(); ok && stream.Channels > 0 {
		parts = append(parts, fmt.Sprintf("%d ch", stream.Channels))
	}
	return "Input: " + strings.Join(parts, ", ")
}

func printManifest(out io.Writer, manifest *pipeline.Manifest, colorize bool) {
	if manifest == nil {
		return
	}
	for _, line := range renderSectionHeader("Job "+manifest.JobID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(manifest.Status), string(manifest.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Input", statusInfo, manifest.InputFile, colorize))
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, manifest.CreatedAt.Local().Format("2006-01-02 15:04:05"), colorize))
	if failed, ok := manifest.FailedStage(); ok {
		fmt.Fprintln(out, renderStatusLine("Failed stage", statusError,
			fmt.Sprintf("%s: %s", pipeline.DisplayName(failed.Name), failed.ErrorText()), colorize))
	}
	fmt.Fprintln(out)

	if len(manifest.Stages) > 0 {
		fmt.Fprint(out, renderTable(
			[]string{"Stage", "Type", "Status", "Duration"},
			stageRows(manifest.Stages),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		fmt.Fprintln(out)
	}
	if len(manifest.Outputs) > 0 {
		fmt.Fprint(out, renderTable([]string{"Output", "Path"}, outputRows(manifest.Outputs), nil))
		fmt.Fprintln(out)
	}
}

func stageRows(records []pipeline.StageRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		duration := "-"
		if record.DurationSeconds != nil {
			duration = formatSeconds(*record.DurationSeconds)
		}
		rows = append(rows, []string{
			pipeline.DisplayName(record.Name),
			record.ProcessorType,
			string(record.Status),
			duration,
		})
	}
	return rows
}

func outputRows(outputs pipeline.Outputs) [][]string {
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, outputs[key]})
	}
	return rows
}

func formatSeconds(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}
