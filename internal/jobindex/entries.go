package jobindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audiopipe/internal/pipeline"
)

// Entry summarizes one job.
type Entry struct {
	JobID           string
	InputFile       string
	Status          pipeline.Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StageCount      int
	CompletedStages int
	LastStage       string
	FailedStage     string
	ErrorMessage    string
	OutputCount     int
}

// timestampLayout keeps every stored time the same width so text ordering in
// SQLite matches chronological ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

const entryColumns = "job_id, input_file, status, created_at, updated_at, stage_count, completed_stages, last_stage, failed_stage, error_message, output_count"

// Record inserts or refreshes the summary for manifest.
func (s *Store) Record(ctx context.Context, manifest *pipeline.Manifest) error {
	if manifest == nil {
		return errors.New("manifest is required")
	}
	entry := summarize(manifest)
	now := formatTimestamp(time.Now())
	_, err := s.exec(ctx,
		`INSERT INTO jobs (`+entryColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(job_id) DO UPDATE SET
            status = excluded.status,
            updated_at = excluded.updated_at,
            stage_count = excluded.stage_count,
            completed_stages = excluded.completed_stages,
            last_stage = excluded.last_stage,
            failed_stage = excluded.failed_stage,
            error_message = excluded.error_message,
            output_count = excluded.output_count`,
		entry.JobID,
		entry.InputFile,
		string(entry.Status),
		formatTimestamp(entry.CreatedAt),
		now,
		entry.StageCount,
		entry.CompletedStages,
		nullableString(entry.LastStage),
		nullableString(entry.FailedStage),
		nullableString(entry.ErrorMessage),
		entry.OutputCount,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", manifest.JobID, err)
	}
	return nil
}

func summarize(manifest *pipeline.Manifest) Entry {
	entry := Entry{
		JobID:       manifest.JobID,
		InputFile:   manifest.InputFile,
		Status:      manifest.Status,
		CreatedAt:   manifest.CreatedAt,
		OutputCount: len(manifest.Outputs),
	}
	if count, ok := manifest.ProcessorCount(); ok {
		entry.StageCount = count
	}
	for _, record := range manifest.Stages {
		entry.LastStage = record.Name
		if record.Status == pipeline.StatusCompleted {
			entry.CompletedStages++
		}
	}
	if failed, ok := manifest.FailedStage(); ok {
		entry.FailedStage = failed.Name
		entry.ErrorMessage = failed.ErrorText()
	}
	return entry
}

// Get returns the entry for jobID, or nil when the index has none.
func (s *Store) Get(ctx context.Context, jobID string) (*Entry, error) {
	entry, err := withBusyRetry(ctx, func(ctx context.Context) (*Entry, error) {
		return scanEntry(s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM jobs WHERE job_id = ?", jobID))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return entry, nil
}

// List returns entries newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...pipeline.Status) ([]*Entry, error) {
	query := "SELECT " + entryColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, job_id"

	entries, err := withBusyRetry(ctx, func(ctx context.Context) ([]*Entry, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var entries []*Entry
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return nil, fmt.Errorf("scan job: %w", err)
			}
			entries = append(entries, entry)
		}
		return entries, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return entries, nil
}

// Delete removes the given jobs from the index and reports how many rows
// were removed.
func (s *Store) Delete(ctx context.Context, jobIDs ...string) (int64, error) {
	var total int64
	for _, id := range jobIDs {
		res, err := s.exec(ctx, "DELETE FROM jobs WHERE job_id = ?", id)
		if err != nil {
			return total, fmt.Errorf("delete job %s: %w", id, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			total += affected
		}
	}
	return total, nil
}

// MarkAbandoned flips jobs still marked processing to failed when isRunning
// reports they no longer hold their directory lock. Such jobs belong to a
// process that exited mid-run.
func (s *Store) MarkAbandoned(ctx context.Context, isRunning func(jobID string) bool) (int64, error) {
	entries, err := s.List(ctx, pipeline.StatusProcessing)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if isRunning != nil && isRunning(entry.JobID) {
			continue
		}
		affected, err := s.markFailed(ctx, entry.JobID, "job abandoned before reaching a terminal state", pipeline.StatusProcessing)
		if err != nil {
			return total, fmt.Errorf("mark job %s abandoned: %w", entry.JobID, err)
		}
		total += affected
	}
	return total, nil
}

// MarkFailed sets jobID to failed with message regardless of its current
// status. It reports whether a row was updated.
func (s *Store) MarkFailed(ctx context.Context, jobID, message string) (bool, error) {
	affected, err := s.markFailed(ctx, jobID, message, "")
	if err != nil {
		return false, fmt.Errorf("mark job %s failed: %w", jobID, err)
	}
	return affected > 0, nil
}

// markFailed updates jobID, restricted to rows in status from when it is set.
func (s *Store) markFailed(ctx context.Context, jobID, message string, from pipeline.Status) (int64, error) {
	query := `UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE job_id = ?`
	args := []any{string(pipeline.StatusFailed), message, formatTimestamp(time.Now()), jobID}
	if from != "" {
		query += ` AND status = ?`
		args = append(args, string(from))
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		status      string
		createdRaw  string
		updatedRaw  string
		lastStage   sql.NullString
		failedStage sql.NullString
		errorMsg    sql.NullString
	)
	if err := scanner.Scan(
		&entry.JobID,
		&entry.InputFile,
		&status,
		&createdRaw,
		&updatedRaw,
		&entry.StageCount,
		&entry.CompletedStages,
		&lastStage,
		&failedStage,
		&errorMsg,
		&entry.OutputCount,
	); err != nil {
		return nil, err
	}
	entry.Status = pipeline.Status(status)
	entry.CreatedAt = parseTime(createdRaw)
	entry.UpdatedAt = parseTime(updatedRaw)
	entry.LastStage = lastStage.String
	entry.FailedStage = failedStage.String
	entry.ErrorMessage = errorMsg.String
	return &entry, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
