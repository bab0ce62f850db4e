// Package checkpoint keeps durable per-job batch progress so result
// application can resume idempotently after a crash.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State names the batch controller's position in its lifecycle.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateApplying  State = "applying"
)

// Checkpoint is the durable progress record for one batch job. The
// applied set only grows within a job's lifetime; re-applying an
// already-applied subject is a no-op upstream, so losing the window
// since the last save costs time, not correctness.
type Checkpoint struct {
	JobID     string    `json:"job_id"`
	State     State     `json:"state"`
	Requested []int     `json:"requested"` // subject ids submitted with the job
	Applied   []int     `json:"applied"`   // subject ids already applied
	// BadTokens holds result tokens that failed to decode, so they are
	// counted once across resumed passes.
	BadTokens []string  `json:"bad_tokens,omitempty"`
	Succeeded int       `json:"succeeded"`
	Errored   int       `json:"errored"`
	Expired   int       `json:"expired"`
	Changed   int       `json:"fields_changed"`
	Submitted int       `json:"submitted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	appliedSet  map[int]bool
	badTokenSet map[string]bool
}

// New creates a checkpoint for a freshly submitted job.
func New(jobID string, submitted int) *Checkpoint {
	return &Checkpoint{
		JobID:      jobID,
		State:      StateSubmitted,
		Submitted:  submitted,
		CreatedAt:  time.Now().UTC(),
		appliedSet: make(map[int]bool),
	}
}

// IsApplied reports whether a subject's result was already applied.
func (c *Checkpoint) IsApplied(personID int) bool {
	c.ensureSet()
	return c.appliedSet[personID]
}

// MarkApplied adds a subject to the applied set.
func (c *Checkpoint) MarkApplied(personID int) {
	c.ensureSet()
	if !c.appliedSet[personID] {
		c.appliedSet[personID] = true
		c.Applied = append(c.Applied, personID)
	}
}

// MarkBadToken records a result token that could not be decoded,
// reporting whether it is new. A resumed apply pass replays the same
// result feed, so undecodable lines are keyed by their raw token to
// keep the errored counter from inflating across passes.
func (c *Checkpoint) MarkBadToken(token string) bool {
	c.ensureSet()
	if c.badTokenSet[token] {
		return false
	}
	c.badTokenSet[token] = true
	c.BadTokens = append(c.BadTokens, token)
	return true
}

// AppliedCount returns the size of the applied set.
func (c *Checkpoint) AppliedCount() int {
	c.ensureSet()
	return len(c.appliedSet)
}

func (c *Checkpoint) ensureSet() {
	if c.appliedSet == nil {
		c.appliedSet = make(map[int]bool, len(c.Applied))
		for _, id := range c.Applied {
			c.appliedSet[id] = true
		}
	}
	if c.badTokenSet == nil {
		c.badTokenSet = make(map[string]bool, len(c.BadTokens))
		for _, token := range c.BadTokens {
			c.badTokenSet[token] = true
		}
	}
}

// Store reads and writes checkpoints under one directory, one file per
// job.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads the checkpoint for a job, returning nil when none exists.
func (s *Store) Load(jobID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	cp.ensureSet()
	return &cp, nil
}

// Save persists the checkpoint, stamping UpdatedAt.
func (s *Store) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	// Write-then-rename so a crash mid-write never corrupts the
	// previous checkpoint.
	tmp := s.path(cp.JobID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path(cp.JobID)); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Delete retires the checkpoint; the job can no longer be resumed.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.path(jobID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns the job ids with live checkpoints.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var jobs []string
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) == ".json" {
			jobs = append(jobs, name[:len(name)-len(".json")])
		}
	}
	return jobs, nil
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}
