package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"roteiro/internal/app"
	"roteiro/internal/llm"
	"roteiro/internal/pipeline"
)

var (
	brollFile       string
	brollConfig     pipeline.BRollConfig
	brollReferences []string
	brollExport     bool
)

var brollCmd = &cobra.Command{
	Use:   "broll [script...]",
	Short: "Plan B-Roll segments and fill them with images",
	Long: `Split a script into timed visual segments, then search or generate an
image for each one. A failing segment does not stop the others.`,
	RunE: runBRoll,
}

func init() {
	f := brollCmd.Flags()
	f.StringVarP(&brollFile, "file", "f", "", "Read the script from a file (- for stdin)")
	f.StringVar(&brollConfig.Pacing, "pacing", pipeline.PacingMedium, "Cut pacing: fast, medium, slow or auto")
	f.StringVar(&brollConfig.Source, "source", pipeline.SourceMixed, "Preferred source: search, generate or mixed")
	f.StringVar(&brollConfig.Mood, "mood", "", "Visual mood")
	f.StringVar(&brollConfig.Style, "style", "", "Visual style")
	f.StringSliceVarP(&brollReferences, "ref", "r", nil, "Reference image (URL or data URI), repeatable")
	f.BoolVar(&brollExport, "export", false, "Store images and a segment manifest")
	rootCmd.AddCommand(brollCmd)
}

func runBRoll(cmd *cobra.Command, args []string) error {
	text, err := readInput(brollFile, args)
	if err != nil {
		return err
	}

	cfg := brollConfig
	for _, ref := range brollReferences {
		img, err := llm.ImageFromString(ref)
		if err != nil {
			return err
		}
		cfg.References = append(cfg.References, img)
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	var res *app.BRollResult
	if err := runWithSpinner("Creating B-Roll", func() error {
		res, err = result.Service.BRoll(cmd.Context(), text, cfg, brollExport, logSteps)
		return err
	}); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(res)
	}

	for _, s := range res.Segments {
		line := fmt.Sprintf("%s  %s-%s  [%s] %s", s.ID, s.Start, s.End, s.Source, s.Description)
		switch {
		case s.Status == pipeline.SegmentFailed:
			fmt.Println(errorStyle.Render(line + "\n     " + s.Error))
		case s.Image != nil && !s.Image.Inline():
			fmt.Println(successStyle.Render(line) + "\n     " + s.Image.URL)
		default:
			fmt.Println(successStyle.Render(line))
		}
	}
	if res.Manifest != "" {
		fmt.Println()
		fmt.Println(infoStyle.Render("Manifest: " + res.Manifest))
	}
	return nil
}
