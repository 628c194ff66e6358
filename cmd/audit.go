package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"roteiro/internal/app"
	"roteiro/internal/audit"
	"roteiro/pkg/config"
)

var auditFile string

var auditCmd = &cobra.Command{
	Use:   "audit [text...]",
	Short: "Check a script for speech synthesis problems",
	Long: `Audit narration text for placeholders, stage directions, unnormalized
numbers, URLs, dates, times and abbreviations. Exits non-zero when the text
has errors.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVarP(&auditFile, "file", "f", "", "Read the script from a file (- for stdin)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	text, err := readInput(auditFile, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}

	report := app.NewValidator(cfg.Audit).Audit(text)

	if jsonOutput {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if !report.Approved {
		return fmt.Errorf("audit failed with %d error(s)", len(report.Errors))
	}
	return nil
}

func printReport(r audit.Report) {
	if r.Approved {
		fmt.Println(successStyle.Render("✓ " + r.Summary))
	} else {
		fmt.Println(errorStyle.Render("✗ " + r.Summary))
	}
	if len(r.Errors) > 0 {
		fmt.Println(errorStyle.Render("  " + strings.Join(r.Errors, "\n  ")))
	}
	if len(r.Warnings) > 0 {
		fmt.Println(warnStyle.Render("  " + strings.Join(r.Warnings, "\n  ")))
	}
}
