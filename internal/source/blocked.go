package source

import "strings"

// softBlockBodyLimit is the size below which a short body plus a
// challenge phrase counts as a block. Legitimately short pages without
// challenge text stay unaffected.
const softBlockBodyLimit = 4096

// blockedStatuses are the hard refusals.
var blockedStatuses = map[int]bool{
	401: true,
	403: true,
	429: true,
	451: true,
}

// challengePhrases mark bot walls and CAPTCHA interstitials.
var challengePhrases = []string{
	"verify you are a human",
	"are you a robot",
	"unusual traffic",
	"access denied",
	"captcha",
	"cf-challenge",
	"just a moment",
	"please enable javascript",
	"attention required",
	"request blocked",
}

// IsBlockedResponse applies the three-way soft/hard block test:
// a blocked HTTP status, or a short body carrying a challenge phrase,
// or near-empty extracted text while the raw markup still contains
// executable script (a JS-rendered challenge page).
func IsBlockedResponse(status int, body string, extractedText string) (bool, string) {
	if blockedStatuses[status] {
		return true, "http status"
	}

	if len(body) > 0 && len(body) < softBlockBodyLimit {
		lower := strings.ToLower(body)
		for _, phrase := range challengePhrases {
			if strings.Contains(lower, phrase) {
				return true, "challenge phrase: " + phrase
			}
		}
	}

	if len(strings.TrimSpace(extractedText)) < 50 &&
		strings.Contains(strings.ToLower(body), "<script") {
		return true, "script-only page"
	}

	return false, ""
}
