package worker

import (
	"context"

	"github.com/deadonfilm/morbid/internal/model"
)

// Enricher runs the full fusion pipeline for one subject.
type Enricher interface {
	Enrich(ctx context.Context, subject model.Subject) (*model.EnrichmentResult, error)
}

// EnrichJob researches one subject through the pool.
type EnrichJob struct {
	Subject  model.Subject
	Enricher Enricher
}

// Execute runs the enrichment.
func (j *EnrichJob) Execute(ctx context.Context) Result {
	result, err := j.Enricher.Enrich(ctx, j.Subject)
	return &EnrichResult{
		Subject: j.Subject,
		Result:  result,
		Error:   err,
	}
}

// EnrichResult is the pool result for one subject.
type EnrichResult struct {
	Subject model.Subject
	Result  *model.EnrichmentResult
	Error   error
}

// GetError returns the job error, satisfying the pool Result contract.
func (r *EnrichResult) GetError() error { return r.Error }

// EnrichBatch runs enrichment for many subjects with bounded
// concurrency. Each subject still runs its adapters sequentially; the
// pool only parallelizes across subjects.
type EnrichBatch struct {
	enricher    Enricher
	concurrency int
}

// NewEnrichBatch creates a batch runner.
func NewEnrichBatch(enricher Enricher, concurrency int) *EnrichBatch {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &EnrichBatch{enricher: enricher, concurrency: concurrency}
}

// Process enriches every subject and returns results in completion
// order.
func (b *EnrichBatch) Process(ctx context.Context, subjects []model.Subject) []*EnrichResult {
	if len(subjects) == 0 {
		return []*EnrichResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, subject := range subjects {
		pool.Submit(&EnrichJob{Subject: subject, Enricher: b.enricher})
	}

	results := pool.Wait()

	out := make([]*EnrichResult, len(results))
	for i, r := range results {
		out[i] = r.(*EnrichResult)
	}
	return out
}
