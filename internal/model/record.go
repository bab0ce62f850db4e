package model

// MannerOfDeath is the medicolegal classification of a death.
type MannerOfDeath string

const (
	MannerNatural      MannerOfDeath = "natural"
	MannerAccident     MannerOfDeath = "accident"
	MannerSuicide      MannerOfDeath = "suicide"
	MannerHomicide     MannerOfDeath = "homicide"
	MannerUndetermined MannerOfDeath = "undetermined"
	MannerPending      MannerOfDeath = "pending"
)

// ValidManner reports whether m is one of the closed manner values.
func ValidManner(m MannerOfDeath) bool {
	switch m {
	case MannerNatural, MannerAccident, MannerSuicide, MannerHomicide,
		MannerUndetermined, MannerPending:
		return true
	}
	return false
}

// NotableFactors is the closed vocabulary for notable-factor tags.
// Synthesis output is intersected with this list; anything else is a
// hallucination and is dropped, never stored.
var NotableFactors = []string{
	"overdose",
	"substance_abuse",
	"long_illness",
	"sudden",
	"on_set",
	"during_production",
	"covid19",
	"controversial",
	"disputed_circumstances",
	"foul_play_suspected",
	"accident_vehicle",
	"accident_aviation",
	"accident_drowning",
	"mental_health",
	"poverty",
	"young_age",
	"advanced_age",
}

var notableFactorSet = func() map[string]bool {
	set := make(map[string]bool, len(NotableFactors))
	for _, f := range NotableFactors {
		set[f] = true
	}
	return set
}()

// FilterFactors intersects tags with the closed vocabulary, preserving
// input order and dropping duplicates.
func FilterFactors(tags []string) []string {
	var kept []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		if notableFactorSet[tag] && !seen[tag] {
			seen[tag] = true
			kept = append(kept, tag)
		}
	}
	return kept
}

// CleanedRecord is the synthesis output for one subject: a single
// structured, confidence-annotated account of the death.
//
// The multi-field shape is authoritative. A minimal cause/details-only
// payload still decodes (missing fields stay zero-valued) but this
// schema is the only one the pipeline produces.
type CleanedRecord struct {
	Cause            string        `json:"cause_of_death"`
	CauseConfidence  float64       `json:"cause_confidence"`
	MedicalDetails   string        `json:"medical_details,omitempty"`
	Circumstances    string        `json:"circumstances,omitempty"`
	Disputed         string        `json:"disputed_accounts,omitempty"`
	Manner           MannerOfDeath `json:"manner_of_death,omitempty"`
	DeathDate        string        `json:"death_date,omitempty"` // correction/refinement, ISO or year
	Factors          []string      `json:"notable_factors,omitempty"`
	DeathLocation    string        `json:"death_location,omitempty"`
	LastProject      string        `json:"last_project,omitempty"`
	Posthumous       []string      `json:"posthumous_releases,omitempty"`
	CareerStatus     string        `json:"career_status_at_death,omitempty"`
	RelatedPersons   []string      `json:"related_persons,omitempty"`
	HasSubstantive   bool          `json:"has_substantive_content"`
	SourcesConsulted []string      `json:"sources_consulted,omitempty"`
}

// Publishable is the hard gate for downstream publication. A record
// without substantive content must stay unpublished no matter how much
// prose synthesis produced — "no information available" padding must
// not be presented as content.
func (r CleanedRecord) Publishable() bool {
	return r.HasSubstantive && r.Cause != ""
}

// Normalize clamps confidence into [0,1], drops out-of-vocabulary
// factor tags and resets invalid manner values to undetermined.
func (r *CleanedRecord) Normalize() {
	if r.CauseConfidence < 0 {
		r.CauseConfidence = 0
	}
	if r.CauseConfidence > 1 {
		r.CauseConfidence = 1
	}
	r.Factors = FilterFactors(r.Factors)
	if r.Manner != "" && !ValidManner(r.Manner) {
		r.Manner = MannerUndetermined
	}
}

// EnrichmentResult is the terminal outcome of one fusion run.
type EnrichmentResult struct {
	Subject  Subject
	Record   *CleanedRecord   // nil when no information was found
	NoInfo   bool             // terminal "no information" outcome
	Metadata []SourceMetadata // per-adapter observability
	Cost     float64          // total metered spend for the run
}
