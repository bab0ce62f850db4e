// Package batch submits bulk asynchronous research jobs, polls them,
// and applies their results to storage with checkpointed, idempotent
// progress.
package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Job status values at the provider boundary.
const (
	JobProcessing = "processing"
	JobEnded      = "ended"
	JobFailed     = "failed"
)

// Result outcome classifications.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeErrored   = "errored"
	OutcomeExpired   = "expired"
)

// Request is one per-subject research request, tagged with an opaque
// correlation token.
type Request struct {
	Token  string
	Prompt string
}

// JobStatus is the provider's view of a submitted job.
type JobStatus struct {
	ID        string
	Status    string // JobProcessing, JobEnded, JobFailed
	Total     int
	Completed int
	Failed    int
}

// Outcome is one streamed result.
type Outcome struct {
	Token  string
	Status string // OutcomeSucceeded, OutcomeErrored, OutcomeExpired
	Body   string // response text for succeeded results
	Err    string
}

// JobProvider is the external research job collaborator: submit once,
// poll, then stream results in a stable order.
type JobProvider interface {
	Submit(ctx context.Context, requests []Request) (jobID string, err error)
	Retrieve(ctx context.Context, jobID string) (*JobStatus, error)
	// Results streams outcomes in provider order. The callback error
	// aborts the stream.
	Results(ctx context.Context, jobID string, fn func(Outcome) error) error
}

const tokenPrefix = "subj-"

// EncodeToken derives the correlation token for a subject id.
func EncodeToken(personID int) string {
	return fmt.Sprintf("%s%d", tokenPrefix, personID)
}

// DecodeToken recovers the subject id from a correlation token.
func DecodeToken(token string) (int, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return 0, fmt.Errorf("malformed token %q", token)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed token %q: %w", token, err)
	}
	return id, nil
}
