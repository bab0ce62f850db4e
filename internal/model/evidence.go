package model

import "time"

// EvidenceItem is what one source adapter produced for one subject:
// a circumstance narrative plus scoring metadata. Confidence and
// reliability are independent axes and must never be collapsed into
// one number — confidence says "this text is about this death",
// reliability says "this publisher can be trusted".
type EvidenceItem struct {
	Source      string          `json:"source"`                 // Adapter name, e.g. "wikipedia"
	SourceURL   string          `json:"source_url,omitempty"`   // URL the evidence came from
	Narrative   string          `json:"narrative"`              // Free-text circumstance narrative
	Disputed    string          `json:"disputed,omitempty"`     // Rumored/contested account, if any
	Factors     []string        `json:"factors,omitempty"`      // Notable-factor tags (closed vocabulary)
	Location    string          `json:"location,omitempty"`     // Death location, if known
	Confidence  float64         `json:"confidence"`             // Topical relevance, [0,1]
	Reliability ReliabilityTier `json:"reliability"`            // Publisher trust ranking
	RawMetadata map[string]any  `json:"raw_metadata,omitempty"` // Provider payload kept for audit
	RetrievedAt time.Time       `json:"retrieved_at"`
}

// ReliabilityTier ranks publisher classes. Higher values outrank lower
// ones during fusion regardless of per-item confidence.
type ReliabilityTier int

const (
	TierUserGenerated ReliabilityTier = 1 // Fan wikis, memorial sites, forums
	TierSecondary     ReliabilityTier = 2 // Encyclopedic mirrors, compilations
	TierTradePress    ReliabilityTier = 3 // Industry publications
	TierNationalPress ReliabilityTier = 4 // Major newspapers, wire services
	TierOfficial      ReliabilityTier = 5 // Death records, coroner reports, registries
)

func (t ReliabilityTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierNationalPress:
		return "national_press"
	case TierTradePress:
		return "trade_press"
	case TierSecondary:
		return "secondary"
	case TierUserGenerated:
		return "user_generated"
	default:
		return "unknown"
	}
}

// SourceMetadata is returned by every adapter call, success or failure,
// so skipped and failed lookups still show up in run statistics.
type SourceMetadata struct {
	Source     string        `json:"source"`
	URL        string        `json:"url,omitempty"` // URL attempted
	Elapsed    time.Duration `json:"elapsed"`
	Confidence float64       `json:"confidence"`     // 0 on failure
	Cost       float64       `json:"cost,omitempty"` // USD spent on this call
	Err        string        `json:"error,omitempty"`
}

// FusionInput is every evidence item collected for one subject in one
// enrichment run. An empty set is a terminal no-information outcome,
// not an error.
type FusionInput struct {
	Subject  Subject
	Items    []EvidenceItem
	Metadata []SourceMetadata
}

// HasEvidence reports whether at least one item carries a non-empty
// narrative, the precondition for invoking synthesis.
func (f FusionInput) HasEvidence() bool {
	for _, item := range f.Items {
		if item.Narrative != "" {
			return true
		}
	}
	return false
}
