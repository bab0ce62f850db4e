package source

import "strings"

// Confidence scoring follows one shape across adapters: a base value
// plus bounded increments for subject-name mention, death keywords,
// circumstance keywords and text length, clamped to a per-variant
// ceiling. Prose-parsed sources clamp lower than structured ones
// because their extraction is noisier.

const (
	confidenceBase = 0.2

	nameMentionBonus = 0.2

	deathKeywordBonus = 0.05
	deathKeywordCap   = 0.2

	circumstanceKeywordBonus = 0.04
	circumstanceKeywordCap   = 0.16

	lengthBonusShort = 0.05 // > 200 chars
	lengthBonusLong  = 0.1  // > 800 chars

	// Clamps per variant.
	MaxConfidenceStructured = 0.95
	MaxConfidenceProse      = 0.75
)

var deathKeywords = []string{
	"died", "death", "dead", "passed away", "deceased",
	"obituary", "funeral", "autopsy", "coroner", "cause of death",
}

var circumstanceKeywords = []string{
	"cancer", "heart attack", "stroke", "accident", "overdose",
	"suicide", "homicide", "illness", "hospital", "complications",
	"pneumonia", "crash", "drowning", "shot", "injuries",
}

// ScoreConfidence computes the shared confidence shape for a piece of
// extracted text about a subject.
func ScoreConfidence(text, subjectName string, variant Variant) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	lower := strings.ToLower(text)

	score := confidenceBase

	if subjectName != "" && strings.Contains(lower, strings.ToLower(subjectName)) {
		score += nameMentionBonus
	}

	score += cappedKeywordBonus(lower, deathKeywords, deathKeywordBonus, deathKeywordCap)
	score += cappedKeywordBonus(lower, circumstanceKeywords, circumstanceKeywordBonus, circumstanceKeywordCap)

	if len(text) > 800 {
		score += lengthBonusLong
	} else if len(text) > 200 {
		score += lengthBonusShort
	}

	max := MaxConfidenceProse
	if variant == VariantStructured {
		max = MaxConfidenceStructured
	}
	if score > max {
		score = max
	}
	return score
}

func cappedKeywordBonus(lower string, keywords []string, each, cap float64) float64 {
	bonus := 0.0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			bonus += each
			if bonus >= cap {
				return cap
			}
		}
	}
	return bonus
}
