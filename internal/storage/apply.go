package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// fieldValue pairs a column with its candidate value for the apply
// step.
type fieldValue struct {
	column string
	value  string
}

// recordFields flattens a cleaned record to its storable columns.
// Empty candidates are dropped up front: they can never win a write.
func recordFields(record *model.CleanedRecord) []fieldValue {
	candidates := []fieldValue{
		{"cause_of_death", record.Cause},
		{"medical_details", record.MedicalDetails},
		{"circumstances", record.Circumstances},
		{"disputed_accounts", record.Disputed},
		{"manner_of_death", string(record.Manner)},
		{"death_location", record.DeathLocation},
		{"last_project", record.LastProject},
		{"career_status", record.CareerStatus},
	}
	if len(record.Factors) > 0 {
		if data, err := json.Marshal(record.Factors); err == nil {
			candidates = append(candidates, fieldValue{"notable_factors", string(data)})
		}
	}

	var nonEmpty []fieldValue
	for _, fv := range candidates {
		if fv.value != "" {
			nonEmpty = append(nonEmpty, fv)
		}
	}
	return nonEmpty
}

// ApplyRecord writes a cleaned record to a subject with
// first-writer-wins semantics: a field that already holds a value is
// never overwritten, and no history row is emitted for it. Every
// actual change appends one history row. Returns the number of fields
// changed; applying the same record twice changes nothing the second
// time.
func (s *Store) ApplyRecord(ctx context.Context, personID int, record *model.CleanedRecord, sourceLabel, jobID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	changed := 0
	now := time.Now().UTC().Format(time.RFC3339)

	for _, fv := range recordFields(record) {
		var current sql.NullString
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT %s FROM subjects WHERE person_id = ?`, fv.column),
			personID).Scan(&current)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("subject %d not found", personID)
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", fv.column, err)
		}

		if current.Valid && current.String != "" {
			continue // first writer already won
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE subjects SET %s = ? WHERE person_id = ?`, fv.column),
			fv.value, personID); err != nil {
			return 0, fmt.Errorf("update %s: %w", fv.column, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history (person_id, field, old_value, new_value, source, job_id, changed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			personID, fv.column, current.String, fv.value, sourceLabel, jobID, now); err != nil {
			return 0, fmt.Errorf("insert history: %w", err)
		}
		changed++
	}

	// cause_confidence rides along with the cause and only on a fresh
	// write of it.
	if record.Cause != "" && record.CauseConfidence > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE subjects SET cause_confidence = ?
			WHERE person_id = ? AND (cause_confidence IS NULL OR cause_confidence = 0)
			  AND cause_of_death = ?`,
			record.CauseConfidence, personID, record.Cause); err != nil {
			return 0, fmt.Errorf("update cause confidence: %w", err)
		}
	}

	if changed > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subjects SET enriched_at = ? WHERE person_id = ?`, now, personID); err != nil {
			return 0, fmt.Errorf("stamp enriched_at: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit apply: %w", err)
	}
	return changed, nil
}

// HistoryFor returns the audit trail for one subject, oldest first.
func (s *Store) HistoryFor(ctx context.Context, personID int) ([]model.FieldChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, field, COALESCE(old_value,''), COALESCE(new_value,''),
		       COALESCE(source,''), COALESCE(job_id,''), changed_at
		FROM history WHERE person_id = ? ORDER BY id`, personID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var changes []model.FieldChange
	for rows.Next() {
		var change model.FieldChange
		var changedAt string
		if err := rows.Scan(&change.PersonID, &change.Field, &change.OldValue,
			&change.NewValue, &change.Source, &change.JobID, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		change.ChangedAt, _ = time.Parse(time.RFC3339, changedAt)
		changes = append(changes, change)
	}
	return changes, rows.Err()
}
