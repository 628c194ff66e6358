package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"roteiro/internal/audit"
)

// DefaultMaxAttempts caps fix generations per script.
const DefaultMaxAttempts = 2

type Auditor interface {
	Audit(text string) audit.Report
}

// Fixer rewrites text so that the listed errors go away.
type Fixer interface {
	Fix(ctx context.Context, text string, errors []string) (string, error)
}

type FixerFunc func(ctx context.Context, text string, errors []string) (string, error)

func (f FixerFunc) Fix(ctx context.Context, text string, errors []string) (string, error) {
	return f(ctx, text, errors)
}

// Correction is the outcome of the audit and fix loop.
type Correction struct {
	Text     string       `json:"text"`
	Attempts int          `json:"attempts"`
	Report   audit.Report `json:"report"`
}

// AttemptCorrection audits text and asks fixer for a rewrite while the audit
// fails, at most maxAttempts times. Text still failing after the last
// attempt is returned as is; only a fixer error is an error.
func AttemptCorrection(ctx context.Context, text string, maxAttempts int, auditor Auditor, fixer Fixer, observe Observer) (Correction, error) {
	c := Correction{Text: text, Report: auditor.Audit(text)}

	for !c.Report.Approved && c.Attempts < maxAttempts {
		c.Attempts++
		observe.emit(Event{
			Kind:    EventCorrection,
			Step:    c.Attempts,
			Message: fmt.Sprintf("auto-correction %d: %s", c.Attempts, c.Report.Summary),
		})
		slog.Info("Correcting script", "attempt", c.Attempts, "errors", len(c.Report.Errors))

		fixed, err := fixer.Fix(ctx, c.Text, c.Report.Errors)
		if err != nil {
			return c, fmt.Errorf("correction attempt %d: %w", c.Attempts, err)
		}

		c.Text = fixed
		c.Report = auditor.Audit(fixed)
	}

	if !c.Report.Approved {
		slog.Warn("Script still has errors after correction", "attempts", c.Attempts, "errors", len(c.Report.Errors))
	}

	return c, nil
}
