package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"roteiro/internal/llm"
	"roteiro/internal/settings"
)

type Capability uint8

const (
	CapText Capability = 1 << iota
	CapImage
	CapSearch
)

func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	switch c {
	case CapText:
		return "text"
	case CapImage:
		return "image"
	case CapSearch:
		return "search"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Factory builds a provider adapter from its credential. The returned value
// implements the llm capability interfaces its registration declares.
type Factory func(ctx context.Context, apiKey string) (any, error)

type Registration struct {
	Capabilities Capability
	New          Factory
}

type Registry map[settings.Provider]Registration

// Gateway routes each capability to the provider selected for it. Adapters
// are built lazily and cached until the settings are replaced.
type Gateway struct {
	mu       sync.Mutex
	settings settings.Settings
	registry Registry
	adapters map[settings.Provider]any
}

func New(s settings.Settings, registry Registry) *Gateway {
	return &Gateway{
		settings: s.Clone(),
		registry: registry,
		adapters: make(map[settings.Provider]any),
	}
}

// ReplaceSettings swaps the configuration and drops every cached adapter.
func (g *Gateway) ReplaceSettings(s settings.Settings) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.settings = s.Clone()
	g.adapters = make(map[settings.Provider]any)
	slog.Debug("Gateway settings replaced",
		"text", s.TextProvider,
		"image", s.ImageProvider,
		"search", s.SearchProvider,
	)
}

func (g *Gateway) Settings() settings.Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings.Clone()
}

func (g *Gateway) GenerateText(ctx context.Context, prompt, system string) (*llm.TextResult, error) {
	adapter, s, err := g.resolve(ctx, CapText, func(s settings.Settings) settings.Provider { return s.TextProvider })
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}

	result, err := adapter.(llm.TextGenerator).GenerateText(ctx, llm.TextRequest{
		Model:           s.ModelText,
		Prompt:          prompt,
		System:          system,
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
		EnableThinking:  s.EnableThinking,
		ThinkingBudget:  s.ThinkingBudget,
		EnableSearch:    s.EnableSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("generate text with %s: %w", s.TextProvider, err)
	}

	if result.Truncated {
		slog.Warn("Text response truncated at token limit",
			"provider", s.TextProvider,
			"model", s.ModelText,
			"max_output_tokens", s.MaxOutputTokens,
		)
	}

	return result, nil
}

func (g *Gateway) GenerateImage(ctx context.Context, prompt string, refs []llm.Image) (*llm.Image, error) {
	adapter, s, err := g.resolve(ctx, CapImage, func(s settings.Settings) settings.Provider { return s.ImageProvider })
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	img, err := adapter.(llm.ImageGenerator).GenerateImage(ctx, llm.ImageRequest{
		Model:       s.ModelImage,
		Prompt:      prompt,
		AspectRatio: string(s.ImageAspectRatio),
		Resolution:  s.ImageResolution,
		References:  refs,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image with %s: %w", s.ImageProvider, err)
	}

	return img, nil
}

// SearchImages returns an empty result, not an error, when the search
// provider has no search implementation.
func (g *Gateway) SearchImages(ctx context.Context, query string) ([]llm.Image, error) {
	adapter, s, err := g.resolve(ctx, CapSearch, func(s settings.Settings) settings.Provider { return s.SearchProvider })
	if err != nil {
		if isUnsupported(err) {
			slog.Warn("Image search is not implemented for provider", "provider", g.Settings().SearchProvider)
			return nil, nil
		}
		return nil, fmt.Errorf("search images: %w", err)
	}

	images, err := adapter.(llm.ImageSearcher).SearchImages(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search images with %s: %w", s.SearchProvider, err)
	}

	return images, nil
}

func (g *Gateway) resolve(ctx context.Context, capability Capability, route func(settings.Settings) settings.Provider) (any, settings.Settings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.settings.Clone()
	provider := route(s)

	reg, ok := g.registry[provider]
	if !ok || !reg.Capabilities.Has(capability) {
		return nil, s, fmt.Errorf("%s has no %s adapter: %w", provider, capability, llm.ErrProviderUnsupported)
	}

	key := s.Key(provider)
	if key == "" {
		return nil, s, fmt.Errorf("%s api key: %w", provider, llm.ErrMissingCredential)
	}

	adapter, ok := g.adapters[provider]
	if !ok {
		var err error
		adapter, err = reg.New(ctx, key)
		if err != nil {
			return nil, s, fmt.Errorf("create %s adapter: %w", provider, err)
		}
		g.adapters[provider] = adapter
		slog.Debug("Adapter created", "provider", provider)
	}

	if !implements(adapter, capability) {
		return nil, s, fmt.Errorf("%s adapter does not implement %s: %w", provider, capability, llm.ErrProviderUnsupported)
	}

	return adapter, s, nil
}

func implements(adapter any, capability Capability) bool {
	switch capability {
	case CapText:
		_, ok := adapter.(llm.TextGenerator)
		return ok
	case CapImage:
		_, ok := adapter.(llm.ImageGenerator)
		return ok
	case CapSearch:
		_, ok := adapter.(llm.ImageSearcher)
		return ok
	default:
		return false
	}
}

func isUnsupported(err error) bool {
	return errors.Is(err, llm.ErrProviderUnsupported)
}
