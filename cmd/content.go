package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roteiro/internal/app"
	"roteiro/internal/llm"
	"roteiro/internal/pipeline"
)

var (
	contentFile     string
	thumbPrompt     string
	thumbReferences []string
	thumbExport     bool
	thumbOut        string
)

var titlesCmd = &cobra.Command{
	Use:   "titles [transcription...]",
	Short: "Suggest titles and a description for a video",
	RunE:  runTitles,
}

var themesCmd = &cobra.Command{
	Use:   "themes [ideas...]",
	Short: "Brainstorm video themes",
	RunE:  runThemes,
}

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail [video context...]",
	Short: "Plan and generate a thumbnail image",
	RunE:  runThumbnail,
}

func init() {
	for _, c := range []*cobra.Command{titlesCmd, themesCmd, thumbnailCmd} {
		c.Flags().StringVarP(&contentFile, "file", "f", "", "Read the input from a file (- for stdin)")
		rootCmd.AddCommand(c)
	}
	thumbnailCmd.Flags().StringVarP(&thumbPrompt, "prompt", "p", "", "Use this image prompt instead of planning one")
	thumbnailCmd.Flags().StringSliceVarP(&thumbReferences, "ref", "r", nil, "Reference image (URL or data URI), repeatable")
	thumbnailCmd.Flags().BoolVar(&thumbExport, "export", false, "Store the image as an artifact")
	thumbnailCmd.Flags().StringVarP(&thumbOut, "out", "o", "", "Also write inline image bytes to this file")
}

func runTitles(cmd *cobra.Command, args []string) error {
	text, err := readInput(contentFile, args)
	if err != nil {
		return err
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	var res *pipeline.TitlesResult
	if err := runWithSpinner("Writing titles and description", func() error {
		res, err = result.Service.TitlesAndDescription(cmd.Context(), text)
		return err
	}); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(res)
	}
	printSection("Titles", res.Titles)
	printSection("Description", res.Description)
	return nil
}

func runThemes(cmd *cobra.Command, args []string) error {
	text, err := readInput(contentFile, args)
	if err != nil {
		return err
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	var themes string
	if err := runWithSpinner("Brainstorming themes", func() error {
		themes, err = result.Service.Themes(cmd.Context(), text)
		return err
	}); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"themes": themes})
	}
	printSection("Themes", themes)
	return nil
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	text, err := readInput(contentFile, args)
	if err != nil {
		return err
	}

	req := pipeline.ThumbnailRequest{Context: text, Prompt: thumbPrompt}
	for _, ref := range thumbReferences {
		img, err := llm.ImageFromString(ref)
		if err != nil {
			return err
		}
		req.References = append(req.References, img)
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	var res *app.ThumbnailResult
	if err := runWithSpinner("Generating thumbnail", func() error {
		res, err = result.Service.Thumbnail(cmd.Context(), req, thumbExport)
		return err
	}); err != nil {
		return err
	}

	if thumbOut != "" && res.Image.Inline() {
		if err := os.WriteFile(thumbOut, res.Image.Data, 0644); err != nil {
			return fmt.Errorf("write thumbnail: %w", err)
		}
		slog.Info("Thumbnail written", "path", thumbOut)
	}

	if jsonOutput {
		return printJSON(res)
	}
	printSection("Prompt", res.Prompt)
	switch {
	case res.Asset != "":
		fmt.Println(successStyle.Render("Stored at " + res.Asset))
	case !res.Image.Inline():
		fmt.Println(infoStyle.Render(res.Image.URL))
	default:
		fmt.Println(warnStyle.Render("Inline image returned; use --out or --export to keep it"))
	}
	return nil
}
