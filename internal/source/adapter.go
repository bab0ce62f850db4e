package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// Variant tags how an adapter obtained its evidence. Prose-extracted
// output carries a lower confidence ceiling than structured output.
type Variant int

const (
	VariantNone Variant = iota
	VariantStructured
	VariantProse
)

// Result is the outcome of one adapter lookup. Meta is always
// populated, success or failure, so every attempt is observable.
type Result struct {
	Evidence *model.EvidenceItem // nil means not found
	Variant  Variant
	Meta     model.SourceMetadata
}

// ErrBlocked is the distinguished access-blocked signal. Adapters
// return it (wrapped) for 401/403/429/451 and soft-block detections so
// the orchestrator can back off or rotate strategy instead of treating
// the subject as having no data at this origin.
var ErrBlocked = errors.New("access blocked by origin")

// BlockedError carries the origin and status behind an ErrBlocked.
type BlockedError struct {
	Source string
	URL    string
	Status int
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: blocked at %s (status %d): %s", e.Source, e.URL, e.Status, e.Reason)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// Adapter knows how to query exactly one external origin for death
// evidence. Ordinary "not found" outcomes are a nil-evidence Result,
// never an error; only access-blocked conditions surface as ErrBlocked.
type Adapter interface {
	// Name identifies the adapter in logs, metadata and config.
	Name() string

	// Reliability is the publisher trust tier for everything this
	// adapter returns.
	Reliability() model.ReliabilityTier

	// IsAvailable reports whether required credentials/configuration
	// are present. Unavailable adapters are skipped, not failed.
	IsAvailable() bool

	// Metered reports whether calls cost money, and the estimate per
	// call in USD.
	Metered() (bool, float64)

	// MinDelay is the adapter-specific floor between consecutive
	// calls, enforced by the orchestrator per adapter.
	MinDelay() time.Duration

	// Timeout bounds one lookup.
	Timeout() time.Duration

	// Lookup researches one subject's death at this origin.
	Lookup(ctx context.Context, subject model.Subject) (*Result, error)
}

// failureResult builds the mandatory metadata-only Result for a failed
// or empty lookup.
func failureResult(name, url string, elapsed time.Duration, err error) *Result {
	meta := model.SourceMetadata{
		Source:     name,
		URL:        url,
		Elapsed:    elapsed,
		Confidence: 0,
	}
	if err != nil {
		meta.Err = err.Error()
	}
	return &Result{Variant: VariantNone, Meta: meta}
}
