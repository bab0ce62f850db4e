package model

import "time"

// Subject is one deceased person being researched. Identity fields
// mirror the dead_actors table; enrichment fields are filled by the
// pipeline and never overwritten once set.
type Subject struct {
	PersonID int    `json:"person_id"`
	Name     string `json:"name"`
	Birth    string `json:"birth,omitempty"` // ISO date or year, as recorded
	Death    string `json:"death,omitempty"`

	// Enrichment columns, nullable in storage.
	Cause           string        `json:"cause_of_death,omitempty"`
	CauseConfidence float64       `json:"cause_confidence,omitempty"`
	MedicalDetails  string        `json:"medical_details,omitempty"`
	Circumstances   string        `json:"circumstances,omitempty"`
	Disputed        string        `json:"disputed_accounts,omitempty"`
	Manner          MannerOfDeath `json:"manner_of_death,omitempty"`
	Factors         []string      `json:"notable_factors,omitempty"`
	DeathLocation   string        `json:"death_location,omitempty"`
	LastProject     string        `json:"last_project,omitempty"`
	CareerStatus    string        `json:"career_status_at_death,omitempty"`

	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
}

// NeedsEnrichment reports whether the subject is eligible for an
// enrichment run: a recorded death but no researched cause yet.
func (s Subject) NeedsEnrichment() bool {
	return s.Death != "" && s.Cause == ""
}

// DeathYear extracts the year from the recorded death date, or 0.
func (s Subject) DeathYear() int {
	t, err := time.Parse("2006-01-02", s.Death)
	if err != nil {
		t, err = time.Parse("2006", s.Death)
		if err != nil {
			return 0
		}
	}
	return t.Year()
}

// FieldChange is one audit entry: a field transition recorded whenever
// the apply step actually writes a value.
type FieldChange struct {
	PersonID  int       `json:"person_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Source    string    `json:"source"`
	JobID     string    `json:"job_id,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// FailureRecord preserves a batch response that could not be parsed or
// applied, keyed by job and subject, so a later parser fix can replay
// it without re-spending the job.
type FailureRecord struct {
	ID            int64      `json:"id"`
	JobID         string     `json:"job_id"`
	PersonID      int        `json:"person_id"`
	Token         string     `json:"token"` // opaque correlation token
	RawResponse   string     `json:"raw_response"`
	ErrorClass    string     `json:"error_class"` // json_parse, date_parse, validation
	CreatedAt     time.Time  `json:"created_at"`
	ReprocessedAt *time.Time `json:"reprocessed_at,omitempty"`
	ReprocessedBy string     `json:"reprocessed_by,omitempty"` // reprocessing batch id
}

// Failure classifications recorded alongside raw responses.
const (
	FailureJSONParse  = "json_parse"
	FailureDateParse  = "date_parse"
	FailureValidation = "validation"
)
