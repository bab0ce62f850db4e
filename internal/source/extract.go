package source

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText flattens an HTML document to whitespace-normalized text,
// skipping script and style subtrees.
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				buf.WriteString(trimmed)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String())
}

// DeathNarrative pulls the sentences most likely to describe the death
// out of a longer text: those mentioning a death keyword, with a small
// window of following context. Returns up to maxLen characters.
func DeathNarrative(text string, maxLen int) string {
	sentences := splitSentences(text)
	var picked []string
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, kw := range deathKeywords {
			if strings.Contains(lower, kw) {
				picked = append(picked, sentence)
				// One trailing sentence of context often carries the
				// actual cause.
				if i+1 < len(sentences) {
					picked = append(picked, sentences[i+1])
				}
				break
			}
		}
	}

	narrative := strings.Join(dedupeStrings(picked), " ")
	if narrative == "" {
		narrative = text
	}
	if len(narrative) > maxLen {
		narrative = narrative[:maxLen]
	}
	return strings.TrimSpace(narrative)
}

func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				sentence := strings.TrimSpace(current.String())
				if len(sentence) >= 20 && len(sentence) <= 600 {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}
	return sentences
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s))
		if key != "" && !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
