package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roteiro/internal/speech"
)

var (
	speakFile  string
	speakOut   string
	speakVoice string
	speakKeep  bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Synthesize narration audio",
	Long: `Synthesize narration with ElevenLabs. Without an ElevenLabs key a silent
WAV of the estimated duration is written instead.`,
	RunE: runSpeak,
}

func init() {
	speakCmd.Flags().StringVarP(&speakFile, "file", "f", "", "Read the text from a file (- for stdin)")
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "narration.mp3", "Output audio file")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "Voice ID overriding the configured one")
	speakCmd.Flags().BoolVar(&speakKeep, "keep-markup", false, "Send SSML markup to the synthesizer unchanged")
	rootCmd.AddCommand(speakCmd)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := readInput(speakFile, args)
	if err != nil {
		return err
	}

	result, err := buildService(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = result.Close() }()

	req := speech.Request{Text: text, StripSSML: !speakKeep}
	if speakVoice != "" {
		voice := result.Service.Config().ElevenLabs.Voice
		voice.ID = speakVoice
		req.Voice = &voice
	}

	var audio []byte
	if err := runWithSpinner("Synthesizing narration", func() error {
		audio, err = result.Service.Synthesize(cmd.Context(), req)
		return err
	}); err != nil {
		return err
	}

	if err := os.WriteFile(speakOut, audio, 0644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	slog.Info("Narration written", "path", speakOut, "bytes", len(audio),
		"estimated", speech.EstimateDuration(text, result.Service.Config().ElevenLabs.WordsPerMinute))
	return nil
}
