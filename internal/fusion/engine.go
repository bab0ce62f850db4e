// Package fusion merges per-source evidence about one death into a
// single cleaned record, applying reliability precedence through the
// synthesis step.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/deadonfilm/morbid/internal/llm"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/source"
)

// ErrCostCeiling aborts an enrichment run once metered spend reaches
// the configured cap.
var ErrCostCeiling = errors.New("cost ceiling reached")

// pacer serializes calls to one adapter and enforces its minimum
// inter-call delay. Concurrent subjects share pacers, so the delay
// holds across the whole process, not per subject.
type pacer struct {
	mu   sync.Mutex
	last time.Time
}

// Stats counts per-run adapter outcomes.
type Stats struct {
	Succeeded int
	NotFound  int
	Blocked   int
	Errored   int
	Skipped   int
}

// Engine runs the applicable adapters for a subject and fuses their
// output.
type Engine struct {
	registry *source.Registry
	synth    llm.Synthesizer
	cost     model.CostConfig
	verbose  bool

	pacers map[string]*pacer

	mu         sync.Mutex
	totalSpend float64
}

// NewEngine builds an engine. synth may be nil, in which case fusion
// falls back to picking the best single evidence item.
func NewEngine(registry *source.Registry, synth llm.Synthesizer, cost model.CostConfig, verbose bool) *Engine {
	pacers := make(map[string]*pacer)
	for _, a := range registry.Adapters() {
		pacers[a.Name()] = &pacer{}
	}
	return &Engine{
		registry: registry,
		synth:    synth,
		cost:     cost,
		verbose:  verbose,
		pacers:   pacers,
	}
}

// TotalSpend reports the metered cost accumulated across all runs.
func (e *Engine) TotalSpend() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalSpend
}

func (e *Engine) addSpend(cost float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalSpend += cost
	return e.totalSpend
}

// Enrich researches one subject across every enabled adapter and
// synthesizes the result. An empty evidence set is a terminal
// no-information outcome, not an error.
func (e *Engine) Enrich(ctx context.Context, subject model.Subject) (*model.EnrichmentResult, error) {
	input := model.FusionInput{Subject: subject}
	var stats Stats
	var subjectSpend float64

	for _, adapter := range e.registry.Adapters() {
		if !adapter.IsAvailable() {
			stats.Skipped++
			continue
		}

		if metered, estimate := adapter.Metered(); metered {
			if subjectSpend+estimate > e.cost.PerSubjectUSD && e.cost.PerSubjectUSD > 0 {
				stats.Skipped++
				continue
			}
			if e.cost.TotalUSD > 0 && e.TotalSpend()+estimate > e.cost.TotalUSD {
				// The only backpressure valve in interactive mode:
				// stop spending entirely.
				return nil, fmt.Errorf("adapter %s: %w", adapter.Name(), ErrCostCeiling)
			}
		}

		result, err := e.callAdapter(ctx, adapter, subject)
		if err != nil {
			if errors.Is(err, source.ErrBlocked) {
				stats.Blocked++
				if e.verbose {
					fmt.Fprintf(os.Stderr, "✗ %s blocked: %v\n", adapter.Name(), err)
				}
				continue
			}
			stats.Errored++
			if e.verbose {
				fmt.Fprintf(os.Stderr, "✗ %s failed: %v\n", adapter.Name(), err)
			}
			continue
		}

		input.Metadata = append(input.Metadata, result.Meta)
		subjectSpend += result.Meta.Cost
		if result.Meta.Cost > 0 {
			e.addSpend(result.Meta.Cost)
		}

		if result.Evidence == nil {
			stats.NotFound++
			continue
		}
		stats.Succeeded++
		input.Items = append(input.Items, *result.Evidence)
		if e.verbose {
			fmt.Fprintf(os.Stderr, "✓ %s: confidence %.2f (%s)\n",
				adapter.Name(), result.Evidence.Confidence, result.Evidence.Reliability)
		}
	}

	if !input.HasEvidence() {
		return &model.EnrichmentResult{
			Subject:  subject,
			NoInfo:   true,
			Metadata: input.Metadata,
			Cost:     subjectSpend,
		}, nil
	}

	record, synthCost, err := e.synthesize(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("synthesize %q: %w", subject.Name, err)
	}
	subjectSpend += synthCost
	if synthCost > 0 {
		e.addSpend(synthCost)
	}

	record.Normalize()
	record.SourcesConsulted = sourceLabels(input.Items)

	return &model.EnrichmentResult{
		Subject:  subject,
		Record:   record,
		Metadata: input.Metadata,
		Cost:     subjectSpend,
	}, nil
}

// callAdapter enforces the adapter's minimum inter-call delay,
// serialized per adapter, and bounds the call with its own timeout.
func (e *Engine) callAdapter(ctx context.Context, adapter source.Adapter, subject model.Subject) (*source.Result, error) {
	p := e.pacers[adapter.Name()]
	p.mu.Lock()
	defer p.mu.Unlock()

	if wait := adapter.MinDelay() - time.Since(p.last); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, adapter.Timeout())
	defer cancel()

	result, err := adapter.Lookup(callCtx, subject)
	p.last = time.Now()
	return result, err
}

func sourceLabels(items []model.EvidenceItem) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, item := range items {
		if !seen[item.Source] {
			seen[item.Source] = true
			labels = append(labels, item.Source)
		}
	}
	return labels
}
