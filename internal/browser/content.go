package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order; the first region with real text
// wins. Falls back to whole-document text when none match.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".article-body",
	".entry-content",
	".post-content",
	"#content",
}

// consentSelectors are known consent/paywall modal dismissers, tried
// first-match-wins with a short per-attempt timeout.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[aria-label='Accept all']",
	"button[aria-label='Close']",
	".fc-cta-consent",
	".qc-cmp2-summary-buttons > button[mode=primary]",
	"button[title='Accept']",
	".modal-close",
}

// paywallMarkers indicate a paywall element in the DOM.
var paywallMarkers = []string{
	".paywall",
	".piano-modal",
	"[data-paywall]",
	".subscription-required",
	".regwall",
	"#gateway-content",
}

// paywallPhrases indicate a paywall from body text alone.
var paywallPhrases = []string{
	"subscribe to continue reading",
	"subscribe to read",
	"this content is for subscribers",
	"already a subscriber",
	"to continue reading, please subscribe",
	"create a free account to continue",
}

// captchaSelectors indicate a CAPTCHA widget.
var captchaSelectors = []string{
	"iframe[src*='recaptcha']",
	"iframe[src*='hcaptcha']",
	".g-recaptcha",
	".h-captcha",
	"#challenge-form",
}

// extractContent pulls main-region text from rendered markup, trying
// the ordered selector list and truncating to maxLen.
func extractContent(html string, maxLen int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript, nav, footer, header").Remove()

	var text string
	for _, sel := range contentSelectors {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		candidate := normalizeSpace(region.Text())
		if len(candidate) > 200 {
			text = candidate
			break
		}
	}
	if text == "" {
		text = normalizeSpace(doc.Find("body").Text())
	}

	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

// detectPaywall classifies the page: none, soft (content partially
// visible) or hard (content withheld behind login).
func detectPaywall(html string) paywallKind {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return paywallNone
	}

	marked := false
	for _, sel := range paywallMarkers {
		if doc.Find(sel).Length() > 0 {
			marked = true
			break
		}
	}

	body := strings.ToLower(normalizeSpace(doc.Find("body").Text()))
	phrased := false
	for _, phrase := range paywallPhrases {
		if strings.Contains(body, phrase) {
			phrased = true
			break
		}
	}

	if !marked && !phrased {
		return paywallNone
	}
	// A marker with substantial visible text is a soft wall; withheld
	// text is a hard one.
	if len(body) > 1500 {
		return paywallSoft
	}
	return paywallHard
}

func hasCaptcha(doc *goquery.Document) (string, bool) {
	for _, sel := range captchaSelectors {
		if doc.Find(sel).Length() > 0 {
			// Site key lives on the widget element when present.
			if key, ok := doc.Find(".g-recaptcha").Attr("data-sitekey"); ok {
				return key, true
			}
			return "", true
		}
	}
	return "", false
}

type paywallKind int

const (
	paywallNone paywallKind = iota
	paywallSoft
	paywallHard
)

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
