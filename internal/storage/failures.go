package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// InsertFailure records a response that could not be parsed or
// applied, so it can be replayed later without re-spending the job.
func (s *Store) InsertFailure(ctx context.Context, failure model.FailureRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (job_id, person_id, token, raw_response, error_class, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		failure.JobID, failure.PersonID, failure.Token, failure.RawResponse,
		failure.ErrorClass, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// PendingFailures returns failure records not yet reprocessed,
// optionally filtered to one job.
func (s *Store) PendingFailures(ctx context.Context, jobID string) ([]model.FailureRecord, error) {
	query := `
		SELECT id, job_id, person_id, token, raw_response, error_class, created_at
		FROM failures WHERE reprocessed_at IS NULL`
	args := []any{}
	if jobID != "" {
		query += ` AND job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []model.FailureRecord
	for rows.Next() {
		var failure model.FailureRecord
		var createdAt string
		if err := rows.Scan(&failure.ID, &failure.JobID, &failure.PersonID,
			&failure.Token, &failure.RawResponse, &failure.ErrorClass, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failure.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		failures = append(failures, failure)
	}
	return failures, rows.Err()
}

// MarkReprocessed stamps a failure as terminally handled by a
// reprocessing batch. It is excluded from all future passes.
func (s *Store) MarkReprocessed(ctx context.Context, failureID int64, batchID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE failures SET reprocessed_at = ?, reprocessed_by = ?
		WHERE id = ? AND reprocessed_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), batchID, failureID)
	if err != nil {
		return fmt.Errorf("mark reprocessed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
