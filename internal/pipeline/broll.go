package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"roteiro/internal/jsonutil"
	"roteiro/internal/llm"
	"roteiro/pkg/prompts"
)

type SourceType string

const (
	SourceSearch   SourceType = "search"
	SourceGenerate SourceType = "generate"
)

type SegmentStatus string

const (
	SegmentPending    SegmentStatus = "pending"
	SegmentProcessing SegmentStatus = "processing"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentFailed     SegmentStatus = "failed"
)

// Segment is one timed B-Roll slot and, once resolved, its image.
type Segment struct {
	ID          string        `json:"id"`
	Start       string        `json:"timestampStart"`
	End         string        `json:"timestampEnd"`
	Text        string        `json:"textContext"`
	Description string        `json:"visualDescription"`
	Source      SourceType    `json:"sourceType"`
	Image       *llm.Image    `json:"image,omitempty"`
	Status      SegmentStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
}

const (
	PacingFast   = "fast"
	PacingMedium = "medium"
	PacingSlow   = "slow"
	PacingAuto   = "auto"

	SourceMixed = "mixed"
)

type BRollConfig struct {
	Pacing     string      `json:"pacing"`
	Source     string      `json:"source"`
	Mood       string      `json:"mood,omitempty"`
	Style      string      `json:"style,omitempty"`
	References []llm.Image `json:"references,omitempty"`
}

func (c BRollConfig) withDefaults() BRollConfig {
	if c.Pacing == "" {
		c.Pacing = PacingMedium
	}
	if c.Source == "" {
		c.Source = SourceMixed
	}
	return c
}

// BRollCreator segments a script into visual slots and fills each slot with
// a searched or generated image.
type BRollCreator struct {
	gateway Gateway
	prompts *prompts.Prompts
	observe Observer
}

func NewBRollCreator(gateway Gateway, p *prompts.Prompts, observe Observer) *BRollCreator {
	return &BRollCreator{gateway: gateway, prompts: p, observe: observe}
}

// Create plans segments and resolves them. Only planning errors are
// returned; per-segment failures are reported in each segment's status.
func (b *BRollCreator) Create(ctx context.Context, text string, cfg BRollConfig) ([]Segment, error) {
	segments, err := b.Plan(ctx, text, cfg)
	if err != nil {
		return nil, err
	}
	return b.Resolve(ctx, segments, cfg), nil
}

// Plan asks for a JSON segmentation of text. Output that does not decode
// into at least one segment fails with llm.ErrMalformedOutput.
func (b *BRollCreator) Plan(ctx context.Context, text string, cfg BRollConfig) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("b-roll text: %w", ErrEmptyInput)
	}
	cfg = cfg.withDefaults()

	prompt, err := b.prompts.RenderBRoll(prompts.BRollParams{
		Text:   text,
		Pacing: cfg.Pacing,
		Source: cfg.Source,
		Mood:   cfg.Mood,
		Style:  cfg.Style,
	})
	if err != nil {
		return nil, fmt.Errorf("render b-roll prompt: %w", err)
	}

	slog.Info("Segmenting script for b-roll", "pacing", cfg.Pacing, "source", cfg.Source)
	result, err := b.gateway.GenerateText(ctx, prompt, b.prompts.System.Visual)
	if err != nil {
		return nil, fmt.Errorf("b-roll segmentation: %w", err)
	}

	segments, err := jsonutil.Decode[[]Segment](result.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: b-roll segmentation: %v", llm.ErrMalformedOutput, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: b-roll segmentation returned no segments", llm.ErrMalformedOutput)
	}

	for i := range segments {
		s := &segments[i]
		if s.ID == "" {
			s.ID = fmt.Sprintf("%03d", i+1)
		}
		if s.Source != SourceSearch {
			s.Source = SourceGenerate
		}
		s.Image = nil
		s.Error = ""
		s.Status = SegmentPending
	}

	slog.Info("B-roll segments planned", "count", len(segments))
	return segments, nil
}

// Resolve fills segments one at a time, in order. A failing segment is
// marked failed and the next one still runs.
func (b *BRollCreator) Resolve(ctx context.Context, segments []Segment, cfg BRollConfig) []Segment {
	out := append([]Segment(nil), segments...)

	for i := range out {
		s := &out[i]
		s.Status = SegmentProcessing
		b.notify(*s)

		img, err := b.resolve(ctx, *s, cfg.References)
		if err != nil {
			s.Status = SegmentFailed
			s.Error = err.Error()
			slog.Warn("B-roll segment failed", "segment", s.ID, "error", err)
		} else {
			s.Status = SegmentCompleted
			s.Image = img
		}
		b.notify(*s)
	}

	return out
}

func (b *BRollCreator) resolve(ctx context.Context, s Segment, refs []llm.Image) (*llm.Image, error) {
	if s.Source == SourceSearch {
		images, err := b.gateway.SearchImages(ctx, s.Description)
		switch {
		case err != nil:
			slog.Warn("Image search failed, generating instead", "segment", s.ID, "error", err)
		case len(images) > 0:
			return &images[0], nil
		default:
			slog.Debug("Image search returned nothing, generating instead", "segment", s.ID)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(err, ctxErr)
		}
	}

	img, err := b.gateway.GenerateImage(ctx, s.Description, refs)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (b *BRollCreator) notify(s Segment) {
	b.observe.emit(Event{Kind: EventSegment, Name: s.ID, Message: string(s.Status), Segment: &s})
}
