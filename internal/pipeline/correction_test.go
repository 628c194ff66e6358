package pipeline

import (
	"context"
	"errors"
	"testing"

	"roteiro/internal/audit"
)

func TestAttemptCorrection(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		fixes        []string
		wantAttempts int
		wantApproved bool
		wantText     string
	}{
		{
			name:         "alreadyClean",
			text:         "A clean script about castles.",
			wantAttempts: 0,
			wantApproved: true,
			wantText:     "A clean script about castles.",
		},
		{
			name:         "fixedOnFirstAttempt",
			text:         "Meet me at 7:30.",
			fixes:        []string{"Meet me at half past seven."},
			wantAttempts: 1,
			wantApproved: true,
			wantText:     "Meet me at half past seven.",
		},
		{
			name:         "adversarialFixerStopsAtTwo",
			text:         "Meet me at 7:30.",
			fixes:        []string{"Still 7:30.", "Now 8:45.", "Never reached 9:00."},
			wantAttempts: 2,
			wantApproved: false,
			wantText:     "Now 8:45.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			fixer := FixerFunc(func(_ context.Context, text string, errs []string) (string, error) {
				if len(errs) == 0 {
					t.Error("fixer called without errors")
				}
				out := tt.fixes[calls]
				calls++
				return out, nil
			})

			var events []Event
			c, err := AttemptCorrection(context.Background(), tt.text, DefaultMaxAttempts, audit.New(), fixer, func(e Event) {
				events = append(events, e)
			})
			if err != nil {
				t.Fatalf("AttemptCorrection() error = %v", err)
			}
			if c.Attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("Attempts = %d, fixer calls = %d, want %d", c.Attempts, calls, tt.wantAttempts)
			}
			if c.Report.Approved != tt.wantApproved {
				t.Errorf("Report.Approved = %v, want %v", c.Report.Approved, tt.wantApproved)
			}
			if c.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", c.Text, tt.wantText)
			}
			if len(events) != tt.wantAttempts {
				t.Errorf("observer saw %d events, want %d", len(events), tt.wantAttempts)
			}
		})
	}
}

func TestAttemptCorrectionFixerError(t *testing.T) {
	fixer := FixerFunc(func(context.Context, string, []string) (string, error) {
		return "", errUpstream
	})

	c, err := AttemptCorrection(context.Background(), "At 7:30.", DefaultMaxAttempts, audit.New(), fixer, nil)
	if !errors.Is(err, errUpstream) {
		t.Fatalf("AttemptCorrection() error = %v, want errUpstream", err)
	}
	if c.Attempts != 1 || c.Text != "At 7:30." {
		t.Errorf("Correction = %+v, want one attempt on original text", c)
	}
}

func TestAttemptCorrectionZeroBudget(t *testing.T) {
	fixer := FixerFunc(func(context.Context, string, []string) (string, error) {
		t.Fatal("fixer called with zero budget")
		return "", nil
	})

	c, err := AttemptCorrection(context.Background(), "At 7:30.", 0, audit.New(), fixer, nil)
	if err != nil {
		t.Fatalf("AttemptCorrection() error = %v", err)
	}
	if c.Report.Approved {
		t.Error("Report approved, want the original failing report")
	}
}
