package pipeline

import (
	"time"

	"roteiro/internal/audit"
)

const (
	artifactVersion       = "1.0.0"
	StatusReady           = "ready"
	StatusNeedsAdjustment = "needs_adjustment"
)

type ScriptMetadata struct {
	Channel            string    `json:"channel"`
	Presenter          string    `json:"presenter"`
	Topic              string    `json:"topic"`
	Language           string    `json:"language"`
	CreatedAt          time.Time `json:"created_at"`
	Version            string    `json:"version"`
	Status             string    `json:"status"`
	CorrectionAttempts int       `json:"correction_attempts"`
}

type NarrationInstructions struct {
	Language string   `json:"language"`
	Pace     string   `json:"pace"`
	Tone     string   `json:"tone"`
	Steps    []string `json:"steps"`
}

// FinalScript is the narration-ready artifact of a script run. It is rebuilt,
// never edited, when the narration text changes.
type FinalScript struct {
	Metadata     ScriptMetadata        `json:"metadata"`
	Content      string                `json:"content"`
	Validations  audit.Flags           `json:"validations"`
	Instructions NarrationInstructions `json:"narration_instructions"`
	Warnings     []string              `json:"warnings,omitempty"`
}

func newFinalScript(cfg ScriptConfig, content string, attempts int, validator *audit.Validator, ctaMarker string, now time.Time) *FinalScript {
	if !cfg.HasCTA() {
		ctaMarker = ""
	}
	report, flags := validator.Flags(content, ctaMarker)

	status := StatusNeedsAdjustment
	if report.Approved {
		status = StatusReady
	}

	warnings := append([]string(nil), report.Warnings...)
	if !flags.CTAPlaced {
		warnings = append(warnings, "Call to action may not be in the mid-roll position")
	}

	return &FinalScript{
		Metadata: ScriptMetadata{
			Channel:            cfg.ChannelName,
			Presenter:          cfg.NarratorName,
			Topic:              cfg.Topic,
			Language:           cfg.Language,
			CreatedAt:          now.UTC(),
			Version:            artifactVersion,
			Status:             status,
			CorrectionAttempts: attempts,
		},
		Content:     content,
		Validations: flags,
		Instructions: NarrationInstructions{
			Language: cfg.Language,
			Pace:     "1.0x (normal)",
			Tone:     "conversational, enthusiastic, motivating",
			Steps: []string{
				"Paste the content into the text-to-speech editor as is",
				"Pick a natural, confident voice",
				"Set the language to " + cfg.Language,
				"Keep the speed at 1.0x",
				"Do not edit the text; it is already normalized for speech",
				"Generate the audio and download it as MP3",
			},
		},
		Warnings: warnings,
	}
}
