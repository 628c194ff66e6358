package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"roteiro/internal/app"
	"roteiro/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sectionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// jsonOutput switches result printing to indented JSON on stdout.
var jsonOutput bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func buildService(cmd *cobra.Command) (*app.BuildResult, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.BuildService(cmd.Context(), cfg)
}

// readInput returns the text of file ("-" for stdin) or, without a file,
// the positional arguments joined by spaces.
func readInput(file string, args []string) (string, error) {
	switch file {
	case "":
		return strings.Join(args, " "), nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	}
}

// runWithSpinner shows a spinner while fn runs. Without a terminal on
// stdout it runs fn directly.
func runWithSpinner(title string, fn func() error) error {
	if !isTerminal(os.Stdout) {
		return fn()
	}

	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+title))
		return err
	}
	fmt.Fprintln(os.Stderr, successStyle.Render("✓ "+title))
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSection(title, body string) {
	fmt.Println(titleStyle.Render(title))
	fmt.Println(sectionStyle.Render(strings.TrimSpace(body)))
	fmt.Println()
}
