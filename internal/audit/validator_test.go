package audit

import (
	"reflect"
	"strings"
	"testing"
)

func TestAuditErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category Category
		match    string
	}{
		{name: "bracketPlaceholder", text: "Hi, I am [Host Name] and this is the show.", category: CategoryPlaceholder, match: "[Host Name]"},
		{name: "bracePlaceholder", text: "Subscribe to {channel} now.", category: CategoryPlaceholder, match: "{channel}"},
		{name: "literalPlaceholder", text: "Thanks for watching CHANNEL NAME.", category: CategoryPlaceholder, match: "CHANNEL NAME"},
		{name: "bracketCue", text: "Welcome back. [PAUSE] Let us begin.", category: CategoryStageDirection, match: "[PAUSE]"},
		{name: "parentheticalCue", text: "He told the joke (laughs) and moved on.", category: CategoryStageDirection, match: "(laughs)"},
		{name: "percent", text: "Sales rose 20% last year.", category: CategoryNumeric, match: "20%"},
		{name: "kilograms", text: "The sword weighs 5kg in total.", category: CategoryNumeric, match: "5kg"},
		{name: "currencyPrefix", text: "The ticket costs $30 at the door.", category: CategoryNumeric, match: "$30"},
		{name: "url", text: "Read more at https://example.com/castles today.", category: CategoryURL, match: "https://example.com/castles"},
		{name: "www", text: "Go to www.example.com for more.", category: CategoryURL, match: "www.example.com"},
		{name: "email", text: "Contact us at test@example.com", category: CategoryURL, match: "test@example.com"},
		{name: "slashDate", text: "It happened on 12/05/2024 in the north.", category: CategoryDate, match: "12/05/2024"},
		{name: "isoDate", text: "It happened on 2024-05-12 in the north.", category: CategoryDate, match: "2024-05-12"},
		{name: "clockTime", text: "The battle began at 7:30 sharp.", category: CategoryTime, match: "7:30"},
		{name: "cueBetweenComparisons", text: "If x < 5 and [PAUSE] y > 3", category: CategoryStageDirection, match: "[PAUSE]"},
		{name: "urlBetweenComparisons", text: "Scores < 10 get a link at www.example.com > now.", category: CategoryURL, match: "www.example.com"},
		{name: "angleBracketPlaceholder", text: "Find the guide at <insert link> below.", category: CategoryPlaceholder, match: "<insert link>"},
		{name: "cueInsideUnknownTag", text: "<note>[MUSIC]</note> And so it begins.", category: CategoryStageDirection, match: "[MUSIC]"},
		{name: "decimalSeconds", text: "The arrow flew for 1.5s before landing.", category: CategoryNumeric, match: "1.5s"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Audit(tt.text)
			if report.Approved {
				t.Fatalf("Audit(%q) approved, want rejected", tt.text)
			}
			if len(report.Errors) == 0 {
				t.Fatal("Audit() returned no errors")
			}
			if !report.Has(tt.category) {
				t.Errorf("Audit() findings = %+v, want category %s", report.Findings, tt.category)
			}
			if !strings.Contains(strings.Join(report.Errors, "\n"), tt.match) {
				t.Errorf("Audit() errors = %v, want mention of %q", report.Errors, tt.match)
			}
			if !strings.HasPrefix(report.Summary, "Needs adjustment") {
				t.Errorf("Summary = %q, want rejection summary", report.Summary)
			}
		})
	}
}

func TestAuditApproves(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		opts         []Option
		wantWarnings int
	}{
		{
			name: "cleanNarration",
			text: "Welcome back, friends. Today we talk about ancient castles and the people who built them.",
		},
		{
			name:         "abbreviationsOnlyWarn",
			text:         "Dr. Smith said the walls were thick, stone, mortar, etc. and nobody argued.",
			wantWarnings: 1,
		},
		{
			name:         "keywordOutOfRange",
			text:         "Every warrior remembers the first siege. A warrior never forgets.",
			opts:         []Option{WithKeyword("warrior", 5, 8)},
			wantWarnings: 1,
		},
		{
			name: "keywordInRange",
			text: strings.Repeat("The warrior rises. ", 6),
			opts: []Option{WithKeyword("warrior", 5, 8)},
		},
		{
			name: "decades",
			text: "In the 1990s and the 80s, castles became museums.",
		},
		{
			name: "letterAfterNumber",
			text: "Chapter 3 s marks the turn of the story.",
		},
		{
			name: "strayComparisons",
			text: "When fewer than 5 < many and many > few, the count is simple.",
		},
		{
			name: "markupIgnored",
			text: `<speak><p>Welcome back.<break time="1.5s"/> <emphasis level="strong">Listen</emphasis> closely.</p></speak>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := New(tt.opts...).Audit(tt.text)
			if !report.Approved {
				t.Fatalf("Audit() errors = %v, want approved", report.Errors)
			}
			if len(report.Warnings) != tt.wantWarnings {
				t.Errorf("len(Warnings) = %d, want %d (%v)", len(report.Warnings), tt.wantWarnings, report.Warnings)
			}
			if report.Summary != approvedSummary {
				t.Errorf("Summary = %q, want %q", report.Summary, approvedSummary)
			}
		})
	}
}

func TestAuditDeduplicatesMatches(t *testing.T) {
	report := New().Audit("At 7:30 we march. At 7:30 we fight. At 9:15 we rest.")
	if len(report.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(report.Errors))
	}
	if report.Errors[0] != "Numeric times: 7:30, 9:15" {
		t.Errorf("Errors[0] = %q", report.Errors[0])
	}
}

func TestAuditIsIdempotent(t *testing.T) {
	v := New(WithKeyword("castle", 1, 2))
	text := "Visit www.example.com at 7:30. Dr. Jones built the castle [PAUSE]."

	first := v.Audit(text)
	second := v.Audit(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Audit() not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestWithRules(t *testing.T) {
	v := New(WithRules(Rule{
		Category: "emoji",
		Severity: SeverityError,
		Label:    "Emoji found",
		Pattern:  ssmlTag,
	}))
	if len(v.rules) != len(DefaultRules)+1 {
		t.Errorf("len(rules) = %d, want %d", len(v.rules), len(DefaultRules)+1)
	}
	if len(DefaultRules) != 7 {
		t.Errorf("WithRules mutated DefaultRules")
	}
}

func TestFlags(t *testing.T) {
	text := "Opening line.\n\nQuick pause, grab the course. [PAUSE]\n\nClosing line."

	report, flags := New().Flags(text, "Quick pause")
	if report.Approved {
		t.Error("report approved, want rejected")
	}
	want := Flags{Clean: false, Normalized: true, Flow: true, CTAPlaced: true, ErrorFree: false}
	if flags != want {
		t.Errorf("Flags() = %+v, want %+v", flags, want)
	}
}

func TestPhraseRule(t *testing.T) {
	if _, ok := PhraseRule([]string{" ", ""}); ok {
		t.Error("PhraseRule() with blank phrases = ok, want false")
	}

	rule, ok := PhraseRule([]string{"Acme Corp", "c++ tips"})
	if !ok {
		t.Fatal("PhraseRule() ok = false")
	}
	v := New(WithRules(rule))

	report := v.Audit("Our friends at ACME corp sent this.")
	if report.Approved || !report.Has(CategoryBannedPhrase) {
		t.Errorf("Audit() = %+v, want banned phrase rejection", report)
	}
	if report := v.Audit("Acmeville is a quiet town."); !report.Approved {
		t.Errorf("Audit() errors = %v, want approved", report.Errors)
	}
}
