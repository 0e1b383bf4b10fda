package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audiopipe/internal/jobindex"
	"audiopipe/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the manifest of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			engine, err := ctx.readEngine()
			if err != nil {
				return err
			}
			manifest, err := engine.JobStatus(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if manifest == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "job not found: %s\n", jobID)
				if hint := indexHint(ctx, cmd, jobID); hint != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), hint)
				}
				return errSilentFailure
			}
			if jsonOutput {
				return writeJSON(cmd, manifest)
			}
			out := cmd.OutOrStdout()
			printManifest(out, manifest, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the manifest as JSON")
	return cmd
}

// indexHint explains a manifest miss using the job index, which also tracks
// running jobs and failures that were not persisted.
func indexHint(ctx *commandContext, cmd *cobra.Command, jobID string) string {
	store, err := ctx.openIndex()
	if err != nil {
		return ""
	}
	defer store.Close()
	entry, err := store.Get(cmd.Context(), jobID)
	if err != nil || entry == nil {
		return ""
	}
	switch entry.Status {
	case pipeline.StatusProcessing:
		return fmt.Sprintf("job is still processing (started %s)", humanize.Time(entry.CreatedAt))
	case pipeline.StatusFailed:
		if entry.FailedStage != "" {
			return fmt.Sprintf("job failed at %s without a persisted manifest: %s",
				pipeline.DisplayName(entry.FailedStage), entry.ErrorMessage)
		}
		return fmt.Sprintf("job failed without a persisted manifest: %s", entry.ErrorMessage)
	default:
		return fmt.Sprintf("job index reports status %s but no manifest exists", entry.Status)
	}
}

func newOutputsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "outputs <job-id>",
		Short: "List the output files produced by a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			engine, err := ctx.readEngine()
			if err != nil {
				return err
			}
			manifest, err := engine.JobStatus(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if manifest == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "job not found: %s\n", jobID)
				return errSilentFailure
			}
			if jsonOutput {
				return writeJSON(cmd, manifest.Outputs)
			}
			out := cmd.OutOrStdout()
			if len(manifest.Outputs) == 0 {
				fmt.Fprintln(out, "No outputs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable([]string{"Output", "Path"}, outputRows(manifest.Outputs), nil))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the outputs map as JSON")
	return cmd
}

type jobListEntry struct {
	JobID           string `json:"job_id"`
	InputFile       string `json:"input_file"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	StageCount      int    `json:"stage_count"`
	CompletedStages int    `json:"completed_stages"`
	FailedStage     string `json:"failed_stage,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	OutputCount     int    `json:"output_count"`
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs recorded in the job index",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			engine, err := ctx.readEngine()
			if err != nil {
				return err
			}
			store, err := ctx.openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.MarkAbandoned(cmd.Context(), engine.Workspace().Running); err != nil {
				return fmt.Errorf("reconcile job index: %w", err)
			}
			entries, err := store.List(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			if jsonOutput {
				items := make([]jobListEntry, 0, len(entries))
				for _, entry := range entries {
					items = append(items, toJobListEntry(entry))
				}
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Job", "Input", "Status", "Stages", "Outputs", "Updated"},
				jobRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (processing, completed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the job list as JSON")
	return cmd
}

func parseStatuses(values []string) ([]pipeline.Status, error) {
	out := make([]pipeline.Status, 0, len(values))
	for _, value := range values {
		status := pipeline.Status(strings.ToLower(strings.TrimSpace(value)))
		switch status {
		case pipeline.StatusProcessing, pipeline.StatusCompleted, pipeline.StatusFailed:
			out = append(out, status)
		case "":
		default:
			return nil, fmt.Errorf("unknown job status %q", value)
		}
	}
	return out, nil
}

func jobRows(entries []*jobindex.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		status := string(entry.Status)
		if entry.FailedStage != "" {
			status += " (" + entry.FailedStage + ")"
		}
		rows = append(rows, []string{
			entry.JobID,
			truncate(entry.InputFile, 48),
			status,
			fmt.Sprintf("%d/%d", entry.CompletedStages, entry.StageCount),
			strconv.Itoa(entry.OutputCount),
			humanize.Time(entry.UpdatedAt),
		})
	}
	return rows
}

func toJobListEntry(entry *jobindex.Entry) jobListEntry {
	return jobListEntry{
		JobID:           entry.JobID,
		InputFile:       entry.InputFile,
		Status:          string(entry.Status),
		CreatedAt:       entry.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       entry.UpdatedAt.UTC().Format(time.RFC3339),
		StageCount:      entry.StageCount,
		CompletedStages: entry.CompletedStages,
		FailedStage:     entry.FailedStage,
		ErrorMessage:    entry.ErrorMessage,
		OutputCount:     entry.OutputCount,
	}
}

// truncate shortens value to at most limit runes, keeping the tail since file
// names carry the useful part of a path.
func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 3 || len(runes) <= limit {
		return value
	}
	return "..." + string(runes[len(runes)-limit+3:])
}
