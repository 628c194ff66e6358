// Package speech defines narration synthesis and the text preparation that
// precedes it.
package speech

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultWordsPerMinute = 150.0
	DefaultModel          = "eleven_multilingual_v2"
	DefaultVoiceID        = "JBFqnCBsd6RMkjVDRZzb"
)

var ErrEmptyText = errors.New("speech text is empty")

// Voice holds the tunable synthesis parameters.
type Voice struct {
	ID              string  `json:"voice_id" yaml:"voice_id"`
	Model           string  `json:"model_id" yaml:"model_id"`
	Stability       float64 `json:"stability" yaml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" yaml:"similarity_boost"`
	Style           float64 `json:"style" yaml:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost" yaml:"use_speaker_boost"`
}

func DefaultVoice() Voice {
	return Voice{
		ID:              DefaultVoiceID,
		Model:           DefaultModel,
		Stability:       0.5,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}

// Request is one narration call. A nil Voice uses the synthesizer's
// configured voice.
type Request struct {
	Text      string
	Voice     *Voice
	StripSSML bool
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

var (
	breakTag   = regexp.MustCompile(`(?i)<break\b[^>]*/?>`)
	closeBlock = regexp.MustCompile(`(?i)</p>|</s>`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// StripSSML removes markup so a plain-text engine reads only the words.
// Paragraph ends become blank lines and breaks become a space.
func StripSSML(text string) string {
	text = breakTag.ReplaceAllString(text, " ")
	text = closeBlock.ReplaceAllString(text, "\n\n")
	text = anyTag.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Prepare applies the request's text options and rejects empty text.
func Prepare(req Request) (string, error) {
	text := req.Text
	if req.StripSSML {
		text = StripSSML(text)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// EstimateDuration is the spoken length of text at wordsPerMinute.
func EstimateDuration(text string, wordsPerMinute float64) time.Duration {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	words := len(strings.Fields(StripSSML(text)))
	return time.Duration(float64(words) / wordsPerMinute * float64(time.Minute))
}

// Resolve returns the voice to use for req: the request's own voice with
// an empty ID or Model taken from base, or base when the request has none.
func (r Request) Resolve(base Voice) Voice {
	if r.Voice == nil {
		return base
	}
	v := *r.Voice
	if v.ID == "" {
		v.ID = base.ID
	}
	if v.Model == "" {
		v.Model = base.Model
	}
	return v
}
