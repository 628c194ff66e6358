package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"roteiro/internal/llm"
	"roteiro/pkg/prompts"
)

// Generators are the single-call workflows with no step coupling.
type Generators struct {
	gateway Gateway
	prompts *prompts.Prompts
}

func NewGenerators(gateway Gateway, p *prompts.Prompts) *Generators {
	return &Generators{gateway: gateway, prompts: p}
}

type TitlesResult struct {
	Titles      string `json:"titles"`
	Description string `json:"description"`
}

// TitlesAndDescription runs the title and description agents concurrently.
func (g *Generators) TitlesAndDescription(ctx context.Context, transcription string) (*TitlesResult, error) {
	if strings.TrimSpace(transcription) == "" {
		return nil, fmt.Errorf("transcription: %w", ErrEmptyInput)
	}

	params := prompts.TextParams{Text: transcription}
	var result TitlesResult

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		text, err := g.text(egCtx, "titles", func() (string, error) { return g.prompts.RenderTitles(params) })
		result.Titles = text
		return err
	})
	eg.Go(func() error {
		text, err := g.text(egCtx, "description", func() (string, error) { return g.prompts.RenderDescription(params) })
		result.Description = text
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *Generators) Themes(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("themes input: %w", ErrEmptyInput)
	}
	return g.text(ctx, "themes", func() (string, error) {
		return g.prompts.RenderThemes(prompts.TextParams{Text: input})
	})
}

// ThumbnailRequest plans an image prompt from Context unless Prompt is set.
type ThumbnailRequest struct {
	Context    string      `json:"context"`
	Prompt     string      `json:"prompt,omitempty"`
	References []llm.Image `json:"references,omitempty"`
}

type ThumbnailResult struct {
	Prompt string     `json:"prompt"`
	Image  *llm.Image `json:"image"`
}

func (g *Generators) Thumbnail(ctx context.Context, req ThumbnailRequest) (*ThumbnailResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		if strings.TrimSpace(req.Context) == "" {
			return nil, fmt.Errorf("thumbnail context: %w", ErrEmptyInput)
		}
		planned, err := g.text(ctx, "thumbnail_plan", func() (string, error) {
			return g.prompts.RenderThumbnail(prompts.TextParams{Text: req.Context})
		})
		if err != nil {
			return nil, err
		}
		prompt = strings.TrimSpace(planned)
	}

	slog.Info("Generating thumbnail", "references", len(req.References))
	img, err := g.gateway.GenerateImage(ctx, prompt, req.References)
	if err != nil {
		return nil, fmt.Errorf("thumbnail image: %w", err)
	}

	return &ThumbnailResult{Prompt: prompt, Image: img}, nil
}

func (g *Generators) text(ctx context.Context, name string, render func() (string, error)) (string, error) {
	prompt, err := render()
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}

	slog.Info("Generating", "agent", name)
	result, err := g.gateway.GenerateText(ctx, prompt, g.prompts.System.Research)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return result.Text, nil
}
