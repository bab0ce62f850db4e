package batch

import (
	"fmt"
	"strings"

	"github.com/deadonfilm/morbid/internal/model"
)

// BuildResearchPrompt renders the per-subject batch request. The
// response schema matches the cleaned record exactly.
func BuildResearchPrompt(subject model.Subject) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research the death of %s", subject.Name)
	if subject.Birth != "" {
		fmt.Fprintf(&b, " (born %s", subject.Birth)
		if subject.Death != "" {
			fmt.Fprintf(&b, ", died %s", subject.Death)
		}
		b.WriteString(")")
	} else if subject.Death != "" {
		fmt.Fprintf(&b, " (died %s)", subject.Death)
	}

	b.WriteString(`.

Respond with a single JSON object:
{
  "cause_of_death": string,
  "cause_confidence": number 0-1,
  "medical_details": string,
  "circumstances": string (long-form narrative),
  "disputed_accounts": string,
  "manner_of_death": one of "natural","accident","suicide","homicide","undetermined","pending",
  "death_date": string (ISO date, only if you can correct or refine the recorded one),
  "notable_factors": array of tags,
  "death_location": string,
  "last_project": string,
  "posthumous_releases": array of strings,
  "career_status_at_death": string,
  "related_persons": array of strings,
  "has_substantive_content": boolean
}
Set has_substantive_content to false if you do not have specific,
verifiable information about this person's death. Never pad the
narrative with "no information available" prose.`)

	return b.String()
}
