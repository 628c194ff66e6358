package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"roteiro/internal/app"
	"roteiro/internal/pipeline"
)

var (
	scriptConfig     pipeline.ScriptConfig
	scriptChannel    string
	scriptTranscript string
	scriptStyle      bool
	scriptFormat     bool
	scriptExport     bool
	scriptNarrate    bool
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Generate a narration script",
	Long: `Generate a narration script in four steps (strategy, introduction,
development, finalization), audit it for speech synthesis and auto-correct it.
Style and speech formatting can be applied afterwards in the same run.`,
	RunE: runScript,
}

func init() {
	f := scriptCmd.Flags()
	f.StringVarP(&scriptConfig.Topic, "topic", "t", "", "Video topic")
	f.StringVar(&scriptTranscript, "transcription", "", "Reference transcription file (- for stdin)")
	f.StringVarP(&scriptChannel, "channel", "c", string(pipeline.ChannelAuthority), "Channel type: authority or dark")
	f.StringVar(&scriptConfig.ChannelName, "channel-name", "", "Channel name")
	f.StringVar(&scriptConfig.NarratorName, "narrator", "", "Narrator name (authority channels)")
	f.StringVar(&scriptConfig.ProductCTA, "product-cta", "", "Mid-roll product call to action")
	f.StringVar(&scriptConfig.SponsorCTA, "sponsor-cta", "", "Sponsor call to action")
	f.StringVar(&scriptConfig.Style, "style", "", "Writing style to apply")
	f.StringVar(&scriptConfig.VideoLength, "length", "", "Target video length")
	f.StringVar(&scriptConfig.Language, "language", "", "Narration language")
	f.BoolVar(&scriptStyle, "apply-style", false, "Rewrite the script in the channel voice")
	f.BoolVar(&scriptFormat, "format", false, "Add speech synthesis markup")
	f.BoolVar(&scriptExport, "export", false, "Store the final artifact")
	f.BoolVar(&scriptNarrate, "narrate", false, "Synthesize and store narration audio")
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := scriptConfig
	cfg.ChannelType = pipeline.ChannelType(scriptChannel)
	if scriptTranscript != "" {
		text, err := readInput(scriptTranscript, nil)
		if err != nil {
			return err
		}
		cfg.Transcription = text
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()
	svc := result.Service

	var state pipeline.ScriptState
	err = runWithSpinner("Writing script", func() error {
		state, err = svc.RunScript(ctx, cfg, logSteps)
		return err
	})
	if err != nil {
		return err
	}

	if scriptStyle {
		if err := runWithSpinner("Applying style", func() error {
			state, err = svc.ApplyStyle(ctx, state.ID)
			return err
		}); err != nil {
			return err
		}
	}
	if scriptFormat {
		if err := runWithSpinner("Formatting for speech", func() error {
			state, err = svc.ApplyFormatting(ctx, state.ID)
			return err
		}); err != nil {
			return err
		}
	}

	if err := exportScript(cmd, svc, state.ID); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(state)
	}
	printScript(state)
	return nil
}

func exportScript(cmd *cobra.Command, svc *app.Service, id string) error {
	ctx := cmd.Context()

	if scriptExport && !svc.Config().Output.Export {
		objects, err := svc.ExportScript(ctx, id)
		if err != nil {
			return err
		}
		for _, o := range objects {
			slog.Info("Exported", "location", o.Location)
		}
	}
	if scriptNarrate {
		obj, err := svc.NarrateScript(ctx, id)
		if err != nil {
			return err
		}
		slog.Info("Narration stored", "location", obj.Location, "bytes", obj.Size)
	}
	return nil
}

func logSteps(e pipeline.Event) {
	switch e.Kind {
	case pipeline.EventStepCompleted:
		slog.Info("Step completed", "step", e.Step, "name", e.Name)
	case pipeline.EventCorrection, pipeline.EventNotice:
		slog.Info(e.Message)
	case pipeline.EventSegment:
		slog.Debug("Segment", "id", e.Name, "status", e.Message)
	}
}

func printScript(state pipeline.ScriptState) {
	final := state.Final
	if final == nil {
		fmt.Println(state.Narration())
		return
	}

	status := successStyle.Render(final.Metadata.Status)
	if final.Metadata.Status != pipeline.StatusReady {
		status = warnStyle.Render(final.Metadata.Status)
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Script %s", state.ID)))
	fmt.Printf("Status: %s  Corrections: %d\n\n", status, final.Metadata.CorrectionAttempts)

	fmt.Println(final.Content)
	fmt.Println()

	for _, w := range final.Warnings {
		fmt.Println(warnStyle.Render("! " + w))
	}
	if state.Correction != nil && len(state.Correction.Report.Errors) > 0 {
		fmt.Println(errorStyle.Render(strings.Join(state.Correction.Report.Errors, "\n")))
	}
}
