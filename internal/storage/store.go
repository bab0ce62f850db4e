// Package storage persists subjects, field history and failure
// records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deadonfilm/morbid/internal/model"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at path, applying the schema
// if needed.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subjects (
			person_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			birth TEXT,
			death TEXT,
			cause_of_death TEXT,
			cause_confidence REAL,
			medical_details TEXT,
			circumstances TEXT,
			disputed_accounts TEXT,
			manner_of_death TEXT,
			notable_factors TEXT,
			death_location TEXT,
			last_project TEXT,
			career_status TEXT,
			enriched_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_death ON subjects(death)`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_name ON subjects(name)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			person_id INTEGER NOT NULL REFERENCES subjects(person_id),
			field TEXT NOT NULL,
			old_value TEXT,
			new_value TEXT,
			source TEXT,
			job_id TEXT,
			changed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_person ON history(person_id)`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			person_id INTEGER NOT NULL,
			token TEXT NOT NULL,
			raw_response TEXT NOT NULL,
			error_class TEXT NOT NULL,
			created_at TEXT NOT NULL,
			reprocessed_at TEXT,
			reprocessed_by TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_job ON failures(job_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// InsertSubject adds a subject row (identity fields only).
func (s *Store) InsertSubject(ctx context.Context, subject model.Subject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subjects (person_id, name, birth, death) VALUES (?, ?, ?, ?)`,
		subject.PersonID, subject.Name, subject.Birth, subject.Death)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// GetSubject looks up a subject by id, returning nil when absent.
func (s *Store) GetSubject(ctx context.Context, personID int) (*model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT person_id, name, COALESCE(birth,''), COALESCE(death,''),
		       COALESCE(cause_of_death,''), COALESCE(cause_confidence,0),
		       COALESCE(medical_details,''), COALESCE(circumstances,''),
		       COALESCE(disputed_accounts,''), COALESCE(manner_of_death,''),
		       COALESCE(notable_factors,''), COALESCE(death_location,''),
		       COALESCE(last_project,''), COALESCE(career_status,''),
		       enriched_at
		FROM subjects WHERE person_id = ?`, personID)

	var subject model.Subject
	var manner, factors string
	var enrichedAt sql.NullString
	err := row.Scan(&subject.PersonID, &subject.Name, &subject.Birth, &subject.Death,
		&subject.Cause, &subject.CauseConfidence, &subject.MedicalDetails,
		&subject.Circumstances, &subject.Disputed, &manner, &factors,
		&subject.DeathLocation, &subject.LastProject, &subject.CareerStatus,
		&enrichedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}

	subject.Manner = model.MannerOfDeath(manner)
	if factors != "" {
		_ = json.Unmarshal([]byte(factors), &subject.Factors)
	}
	if enrichedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, enrichedAt.String); perr == nil {
			subject.EnrichedAt = &t
		}
	}
	return &subject, nil
}

// MarkEnriched stamps a subject as researched without writing any
// fields. Used for terminal no-information outcomes so the subject
// stops reappearing in the eligible set.
func (s *Store) MarkEnriched(ctx context.Context, personID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET enriched_at = ? WHERE person_id = ?`,
		time.Now().UTC().Format(time.RFC3339), personID)
	if err != nil {
		return fmt.Errorf("mark enriched: %w", err)
	}
	return nil
}

// EligibleSubjects returns subjects with a recorded death but no cause
// and no prior research pass, excluding ids already in an in-flight
// job, capped by limit.
func (s *Store) EligibleSubjects(ctx context.Context, limit int, exclude map[int]bool) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, name, COALESCE(birth,''), COALESCE(death,'')
		FROM subjects
		WHERE death IS NOT NULL AND death != ''
		  AND (cause_of_death IS NULL OR cause_of_death = '')
		  AND enriched_at IS NULL
		ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("query eligible: %w", err)
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var subject model.Subject
		if err := rows.Scan(&subject.PersonID, &subject.Name, &subject.Birth, &subject.Death); err != nil {
			return nil, fmt.Errorf("scan eligible: %w", err)
		}
		if exclude[subject.PersonID] {
			continue
		}
		subjects = append(subjects, subject)
		if limit > 0 && len(subjects) >= limit {
			break
		}
	}
	return subjects, rows.Err()
}

// DeadSubjects returns every subject with a full death date, for the
// day-of-year matching path.
func (s *Store) DeadSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, name, COALESCE(birth,''), COALESCE(death,''),
		       COALESCE(cause_of_death,'')
		FROM subjects
		WHERE death IS NOT NULL AND length(death) = 10`)
	if err != nil {
		return nil, fmt.Errorf("query dead subjects: %w", err)
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var subject model.Subject
		if err := rows.Scan(&subject.PersonID, &subject.Name, &subject.Birth,
			&subject.Death, &subject.Cause); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}
