package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deadonfilm/morbid/internal/checkpoint"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/storage"
	"github.com/deadonfilm/morbid/internal/util"
)

// Controller drives a batch job through its lifecycle: submit,
// poll, apply. Every step after submission is resumable from the
// job's checkpoint.
type Controller struct {
	store       *storage.Store
	checkpoints *checkpoint.Store
	provider    JobProvider
	cfg         model.BatchConfig

	// Logf receives human-readable progress lines; nil disables them.
	Logf func(format string, args ...any)
}

// NewController wires the batch controller.
func NewController(store *storage.Store, checkpoints *checkpoint.Store, provider JobProvider, cfg model.BatchConfig) *Controller {
	return &Controller{
		store:       store,
		checkpoints: checkpoints,
		provider:    provider,
		cfg:         cfg,
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Submit selects eligible subjects, excludes any already in flight
// under a live checkpoint, and submits one research request per
// subject. The returned job id is persisted to a checkpoint before
// Submit returns; a job with no checkpoint cannot be applied.
func (c *Controller) Submit(ctx context.Context) (string, int, error) {
	inflight, err := c.inflightSubjects()
	if err != nil {
		return "", 0, err
	}

	subjects, err := c.store.EligibleSubjects(ctx, c.cfg.Limit, inflight)
	if err != nil {
		return "", 0, err
	}
	if len(subjects) == 0 {
		return "", 0, nil
	}

	requests := make([]Request, 0, len(subjects))
	requested := make([]int, 0, len(subjects))
	for _, subject := range subjects {
		requests = append(requests, Request{
			Token:  EncodeToken(subject.PersonID),
			Prompt: BuildResearchPrompt(subject),
		})
		requested = append(requested, subject.PersonID)
	}

	jobID, err := c.provider.Submit(ctx, requests)
	if err != nil {
		return "", 0, fmt.Errorf("submit batch: %w", err)
	}

	cp := checkpoint.New(jobID, len(requests))
	cp.Requested = requested
	if err := c.checkpoints.Save(cp); err != nil {
		// The job exists remotely but has no local checkpoint; the
		// caller must know the id or the results are orphaned.
		return jobID, len(requests), fmt.Errorf("job %s submitted but checkpoint not saved: %w", jobID, err)
	}

	c.logf("submitted job %s with %d subjects", jobID, len(requests))
	return jobID, len(requests), nil
}

// inflightSubjects collects subject ids requested by any job that
// still has a live checkpoint, so overlapping submissions never
// double-spend.
func (c *Controller) inflightSubjects() (map[int]bool, error) {
	jobs, err := c.checkpoints.List()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	inflight := make(map[int]bool)
	for _, jobID := range jobs {
		cp, err := c.checkpoints.Load(jobID)
		if err != nil {
			return nil, err
		}
		if cp == nil {
			continue
		}
		for _, id := range cp.Requested {
			inflight[id] = true
		}
	}
	return inflight, nil
}

// Status polls the provider for a job and records the polling state.
func (c *Controller) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	status, err := c.provider.Retrieve(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("retrieve job %s: %w", jobID, err)
	}

	cp, err := c.checkpoints.Load(jobID)
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.State == checkpoint.StateSubmitted && status.Status == JobProcessing {
		cp.State = checkpoint.StatePolling
		if err := c.checkpoints.Save(cp); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// ApplySummary reports one apply pass over a finished job.
type ApplySummary struct {
	JobID     string
	Applied   int // results processed this pass
	Skipped   int // already applied by an earlier pass
	Succeeded int
	Errored   int
	Expired   int
	Changed   int // total fields written
	Retired   bool
}

// Apply streams the finished job's results and writes them to
// storage. Already-applied subjects are skipped, so a crashed or
// interrupted pass can simply run again. The checkpoint is retired
// only when every result landed cleanly; errored or expired results
// keep it alive for inspection.
func (c *Controller) Apply(ctx context.Context, jobID string) (*ApplySummary, error) {
	cp, err := c.checkpoints.Load(jobID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint for job %s; submit it through this tool first", jobID)
	}

	status, err := c.provider.Retrieve(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("retrieve job %s: %w", jobID, err)
	}
	switch status.Status {
	case JobProcessing:
		return nil, fmt.Errorf("job %s still processing (%d/%d complete)", jobID, status.Completed, status.Total)
	case JobFailed:
		return nil, fmt.Errorf("job %s failed at the provider", jobID)
	}

	cp.State = checkpoint.StateApplying
	if err := c.checkpoints.Save(cp); err != nil {
		return nil, err
	}

	summary := &ApplySummary{JobID: jobID}
	interval := c.cfg.CheckpointInterval
	if interval <= 0 {
		interval = 25
	}
	sinceSave := 0

	err = c.provider.Results(ctx, jobID, func(outcome Outcome) error {
		personID, err := DecodeToken(outcome.Token)
		if err != nil {
			// No way to attribute this line to a subject. Count it
			// once, keyed by the raw token, so a resumed pass over
			// the same feed does not inflate the counter.
			if cp.MarkBadToken(outcome.Token) {
				cp.Errored++
				summary.Errored++
			}
			return nil
		}

		if cp.IsApplied(personID) {
			summary.Skipped++
			return nil
		}

		switch outcome.Status {
		case OutcomeSucceeded:
			changed, applyErr := c.applyOne(ctx, cp, personID, outcome)
			if applyErr != nil {
				return applyErr
			}
			cp.Succeeded++
			cp.Changed += changed
			summary.Succeeded++
			summary.Changed += changed
		case OutcomeExpired:
			cp.Expired++
			summary.Expired++
		default:
			cp.Errored++
			summary.Errored++
		}

		cp.MarkApplied(personID)
		summary.Applied++
		sinceSave++
		if sinceSave >= interval {
			sinceSave = 0
			if err := c.checkpoints.Save(cp); err != nil {
				return err
			}
			c.logf("job %s: %d/%d applied", jobID, cp.AppliedCount(), cp.Submitted)
		}
		return nil
	})
	if err != nil {
		// Persist whatever progress we made before surfacing the
		// error; the next pass resumes from here.
		if saveErr := c.checkpoints.Save(cp); saveErr != nil {
			return summary, fmt.Errorf("apply aborted (%v) and checkpoint not saved: %w", err, saveErr)
		}
		return summary, err
	}

	if err := c.checkpoints.Save(cp); err != nil {
		return summary, err
	}

	if cp.Errored == 0 && cp.Expired == 0 {
		if err := c.checkpoints.Delete(jobID); err != nil {
			return summary, fmt.Errorf("retire checkpoint: %w", err)
		}
		summary.Retired = true
	}

	c.logf("job %s done: %d succeeded, %d errored, %d expired, %d fields changed",
		jobID, summary.Succeeded, summary.Errored, summary.Expired, summary.Changed)
	return summary, nil
}

// applyOne parses and applies a single successful result. Parse and
// validation problems are preserved as failure records rather than
// surfaced as errors: the job already paid for the response.
func (c *Controller) applyOne(ctx context.Context, cp *checkpoint.Checkpoint, personID int, outcome Outcome) (int, error) {
	record, class := ParseRecord(outcome.Body)
	if record == nil {
		if err := c.store.InsertFailure(ctx, model.FailureRecord{
			JobID:       cp.JobID,
			PersonID:    personID,
			Token:       outcome.Token,
			RawResponse: outcome.Body,
			ErrorClass:  class,
		}); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if !record.Publishable() {
		// A clean "I don't know" answer. No fields to write, but the
		// outcome is terminal: stamp the subject so the next submit
		// does not pay for the same research again.
		if err := c.store.MarkEnriched(ctx, personID); err != nil {
			return 0, fmt.Errorf("mark subject %d enriched: %w", personID, err)
		}
		return 0, nil
	}

	changed, err := c.store.ApplyRecord(ctx, personID, record, "batch", cp.JobID)
	if err != nil {
		return 0, fmt.Errorf("apply subject %d: %w", personID, err)
	}
	return changed, nil
}

// ParseRecord decodes a raw batch response body into a normalized
// cleaned record. On failure it returns nil and the failure class to
// record: malformed JSON, an unparseable death date, or an
// out-of-vocabulary manner.
func ParseRecord(body string) (*model.CleanedRecord, string) {
	text := util.StripCodeFences(body)

	var record model.CleanedRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, model.FailureJSONParse
	}

	if record.DeathDate != "" {
		if _, err := time.Parse("2006-01-02", record.DeathDate); err != nil {
			if _, err := time.Parse("2006", record.DeathDate); err != nil {
				return nil, model.FailureDateParse
			}
		}
	}

	if record.Manner != "" && !model.ValidManner(record.Manner) {
		return nil, model.FailureValidation
	}

	record.Normalize()
	return &record, ""
}
