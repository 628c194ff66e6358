package audit

import (
	"fmt"
	"regexp"
	"strings"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

type Category string

const (
	CategoryPlaceholder    Category = "placeholder"
	CategoryStageDirection Category = "stage_direction"
	CategoryNumeric        Category = "numeric_unit"
	CategoryURL            Category = "url_email"
	CategoryDate           Category = "numeric_date"
	CategoryTime           Category = "numeric_time"
	CategoryAbbreviation   Category = "abbreviation"
	CategoryKeyword        Category = "keyword_frequency"
	CategoryBannedPhrase   Category = "banned_phrase"
)

// Rule flags every match of Pattern as one finding of Category.
type Rule struct {
	Category Category
	Severity Severity
	Label    string
	Pattern  *regexp.Regexp
}

// Matches returns the distinct matches in order of first appearance.
func (r Rule) Matches(text string) []string {
	found := r.Pattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(found))
	unique := make([]string, 0, len(found))
	for _, m := range found {
		m = strings.TrimSpace(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		unique = append(unique, m)
	}
	return unique
}

// A bare "s" unit counts as seconds only after a decimal, so decades like
// "1990s" pass.
var (
	placeholderPattern = regexp.MustCompile(`\[[\w\s]+\]|\{[\w\s]+\}|<[A-Za-z][\w ]*>|\b(?:YOUR NAME|CHANNEL NAME|BRAND|PLACEHOLDER)\b`)
	stagePattern       = regexp.MustCompile(`(?i)\[(?:PAUSE|MUSIC|LAUGHS|LAUGHTER|SCENE|SFX|APPLAUSE|B-ROLL)\]|\((?:pause|laughs|music|sighs|applause)\)`)
	numericPattern     = regexp.MustCompile(`(?i)(?:R\$|[$€£])\s?\d+(?:[.,]\d+)?|\d+(?:[.,]\d+)?\s*(?:%|R\$|[$€£]|(?:kg|km|min|sec|m)\b)|\d+[.,]\d+s\b`)
	urlPattern         = regexp.MustCompile(`[a-zA-Z0-9\-_.]+@[a-zA-Z0-9\-_.]+|https?://\S+|www\.\S+`)
	datePattern        = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	timePattern        = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	abbrevPattern      = regexp.MustCompile(`\b(?:Dr|Prof|Mr|Mrs|Ms|Sr|Jr)\.|\b(?:etc|vs)\.|\bn[°º]`)
)

// DefaultRules is the narration rule set. Errors make text unusable for
// speech synthesis; warnings are stylistic.
var DefaultRules = []Rule{
	{Category: CategoryPlaceholder, Severity: SeverityError, Label: "Placeholders found", Pattern: placeholderPattern},
	{Category: CategoryStageDirection, Severity: SeverityError, Label: "Stage directions found", Pattern: stagePattern},
	{Category: CategoryNumeric, Severity: SeverityError, Label: "Unnormalized numbers", Pattern: numericPattern},
	{Category: CategoryURL, Severity: SeverityError, Label: "Raw URLs/emails", Pattern: urlPattern},
	{Category: CategoryDate, Severity: SeverityError, Label: "Numeric dates", Pattern: datePattern},
	{Category: CategoryTime, Severity: SeverityError, Label: "Numeric times", Pattern: timePattern},
	{Category: CategoryAbbreviation, Severity: SeverityWarning, Label: "Abbreviations still present", Pattern: abbrevPattern},
}

// PhraseRule rejects every case-insensitive occurrence of the given phrases.
// It reports false when no phrase is left after trimming.
func PhraseRule(phrases []string) (Rule, bool) {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return Rule{}, false
	}
	return Rule{
		Category: CategoryBannedPhrase,
		Severity: SeverityError,
		Label:    "Banned phrases",
		Pattern:  regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}, true
}
