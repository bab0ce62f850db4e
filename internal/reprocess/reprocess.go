// Package reprocess replays durable failure records through the
// current parser. Responses were already paid for; a parser fix makes
// them recoverable without resubmitting anything.
package reprocess

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/deadonfilm/morbid/internal/batch"
	"github.com/deadonfilm/morbid/internal/storage"
)

// Summary reports one reprocessing pass.
type Summary struct {
	BatchID   string
	Total     int
	Recovered int // parsed and applied this time
	StillBad  int // failed again, stays pending
	Changed   int // fields written
}

// Runner replays pending failures. Each pass gets its own batch id so
// the failures table records which pass retired each row.
type Runner struct {
	store *storage.Store

	// Logf receives progress lines; nil disables them.
	Logf func(format string, args ...any)
}

// NewRunner wires a reprocessing runner.
func NewRunner(store *storage.Store) *Runner {
	return &Runner{store: store}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

// Run replays all pending failures, optionally filtered to one
// original job. A failure that parses cleanly now is applied and
// marked reprocessed; one that still fails stays pending for the next
// parser improvement. Nothing here talks to the provider.
func (r *Runner) Run(ctx context.Context, jobID string) (*Summary, error) {
	failures, err := r.store.PendingFailures(ctx, jobID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		BatchID: uuid.NewString(),
		Total:   len(failures),
	}
	if len(failures) == 0 {
		return summary, nil
	}

	r.logf("reprocessing %d pending failures as batch %s", len(failures), summary.BatchID)

	for _, failure := range failures {
		record, _ := batch.ParseRecord(failure.RawResponse)
		if record == nil {
			summary.StillBad++
			continue
		}

		if record.Publishable() {
			changed, err := r.store.ApplyRecord(ctx, failure.PersonID, record, "reprocess", failure.JobID)
			if err != nil {
				return summary, fmt.Errorf("apply subject %d: %w", failure.PersonID, err)
			}
			summary.Changed += changed
		}

		if err := r.store.MarkReprocessed(ctx, failure.ID, summary.BatchID); err != nil {
			return summary, fmt.Errorf("mark failure %d: %w", failure.ID, err)
		}
		summary.Recovered++
	}

	r.logf("recovered %d of %d, %d still pending", summary.Recovered, summary.Total, summary.StillBad)
	return summary, nil
}
