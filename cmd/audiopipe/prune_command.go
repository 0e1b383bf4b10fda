package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"audiopipe/internal/logging"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	var skipLogs bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove job directories older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Retention.JobRetentionDays
			}
			out := cmd.OutOrStdout()
			if days <= 0 {
				fmt.Fprintln(out, "Job retention disabled; nothing to prune")
				return nil
			}

			engine, err := ctx.readEngine()
			if err != nil {
				return err
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			result, err := engine.Workspace().Prune(cmd.Context(), cutoff, logger)
			if err != nil {
				return err
			}

			if len(result.Removed) > 0 {
				store, err := ctx.openIndex()
				if err != nil {
					logging.WarnWithContext(logger, "job index unavailable; index entries not pruned", "index_unavailable",
						logging.Error(err))
				} else {
					if _, err := store.Delete(cmd.Context(), result.Removed...); err != nil {
						logging.WarnWithContext(logger, "failed to prune job index", "index_prune_failed",
							logging.Error(err))
					}
					store.Close()
				}
			}

			var removedLogs []string
			if !skipLogs {
				removedLogs = logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
					Dir:     cfg.Paths.LogDir,
					Pattern: "*.log",
					Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
				})
			}

			fmt.Fprintf(out, "Removed %d job(s) older than %d day(s)\n", len(result.Removed), days)
			if len(removedLogs) > 0 {
				fmt.Fprintf(out, "Removed %d log file(s) older than %d day(s)\n", len(removedLogs), cfg.Logging.RetentionDays)
			}
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d job(s) still running or unreadable\n", len(result.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Override retention.job_retention_days")
	cmd.Flags().BoolVar(&skipLogs, "skip-logs", false, "Do not prune old log files")
	return cmd
}
