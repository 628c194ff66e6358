package audit

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	approvedSummary = "Approved for narration: no errors found"
	rejectedSummary = "Needs adjustment: %d error(s) found"
)

// ssmlTag matches the speech markup elements narration formatting emits.
// Other angle-bracket text is left for the rules to judge.
var ssmlTag = regexp.MustCompile(`(?i)</?(?:speak|p|s|break|emphasis|prosody|say-as|sub|phoneme|lang|voice|mark|audio)(?:\s[^<>]*)?/?>`)

// Finding is one rule that matched, with its distinct matches.
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Matches  []string `json:"matches"`
}

// Report is the result of one audit pass. Approved is true iff Errors is
// empty.
type Report struct {
	Approved bool      `json:"approved"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
}

// Has reports whether any finding belongs to one of the categories.
func (r Report) Has(categories ...Category) bool {
	for _, f := range r.Findings {
		for _, c := range categories {
			if f.Category == c {
				return true
			}
		}
	}
	return false
}

type keywordRange struct {
	word     string
	pattern  *regexp.Regexp
	min, max int
}

// Validator runs a fixed rule set against narration text. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	rules   []Rule
	keyword *keywordRange
}

type Option func(*Validator)

// WithKeyword warns when word occurs fewer than min or more than max times.
func WithKeyword(word string, min, max int) Option {
	return func(v *Validator) {
		word = strings.TrimSpace(word)
		if word == "" {
			return
		}
		v.keyword = &keywordRange{
			word:    word,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			min:     min,
			max:     max,
		}
	}
}

// WithRules appends rules to the default set.
func WithRules(rules ...Rule) Option {
	return func(v *Validator) {
		v.rules = append(v.rules, rules...)
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{rules: append([]Rule(nil), DefaultRules...)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Audit checks text against every rule. Speech markup is ignored so
// formatted narration is judged on its spoken content.
func (v *Validator) Audit(text string) Report {
	spoken := ssmlTag.ReplaceAllString(text, " ")

	report := Report{Errors: []string{}, Warnings: []string{}}
	for _, rule := range v.rules {
		matches := rule.Matches(spoken)
		if len(matches) == 0 {
			continue
		}

		report.Findings = append(report.Findings, Finding{Category: rule.Category, Severity: rule.Severity, Matches: matches})
		msg := fmt.Sprintf("%s: %s", rule.Label, strings.Join(matches, ", "))
		if rule.Severity == SeverityWarning {
			report.Warnings = append(report.Warnings, msg)
		} else {
			report.Errors = append(report.Errors, msg)
		}
	}

	if v.keyword != nil {
		if msg, ok := v.keyword.check(spoken); !ok {
			report.Warnings = append(report.Warnings, msg)
			report.Findings = append(report.Findings, Finding{Category: CategoryKeyword, Severity: SeverityWarning})
		}
	}

	report.Approved = len(report.Errors) == 0
	if report.Approved {
		report.Summary = approvedSummary
	} else {
		report.Summary = fmt.Sprintf(rejectedSummary, len(report.Errors))
	}

	return report
}

func (k *keywordRange) check(text string) (string, bool) {
	count := len(k.pattern.FindAllStringIndex(text, -1))
	if count >= k.min && count <= k.max {
		return "", true
	}
	return fmt.Sprintf("Keyword %q appears %d times (expected %d-%d)", k.word, count, k.min, k.max), false
}

// Flags are the boolean validation markers stored with a final script.
type Flags struct {
	Clean      bool `json:"clean"`
	Normalized bool `json:"normalized"`
	Flow       bool `json:"flow"`
	CTAPlaced  bool `json:"cta_placed"`
	ErrorFree  bool `json:"error_free"`
}

// Flags audits text and derives the artifact flags from the same report.
func (v *Validator) Flags(text, ctaMarker string) (Report, Flags) {
	report := v.Audit(text)
	return report, Flags{
		Clean:      !report.Has(CategoryPlaceholder, CategoryStageDirection),
		Normalized: !report.Has(CategoryNumeric, CategoryURL, CategoryDate, CategoryTime),
		Flow:       len(report.Warnings) == 0,
		CTAPlaced:  CTAPlaced(text, ctaMarker),
		ErrorFree:  report.Approved,
	}
}
