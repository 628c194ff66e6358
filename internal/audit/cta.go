package audit

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n|</p>`)

// CTAPlaced reports whether marker opens a mid-roll call to action: it must
// appear in a paragraph that is neither the first nor the last. An empty
// marker means no call to action was requested and always passes.
func CTAPlaced(text, marker string) bool {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return true
	}

	paragraphs := Paragraphs(text)
	for i, p := range paragraphs {
		if !strings.Contains(strings.ToLower(p), marker) {
			continue
		}
		return i > 0 && i < len(paragraphs)-1
	}
	return false
}

// Paragraphs splits text on blank lines or closing paragraph tags and drops
// paragraphs with no spoken content.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if strings.TrimSpace(ssmlTag.ReplaceAllString(p, "")) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
