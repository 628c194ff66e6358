package gateway

import (
	"context"
	"net/http"

	"roteiro/internal/llm/anthropic"
	"roteiro/internal/llm/gemini"
	"roteiro/internal/llm/googlesearch"
	"roteiro/internal/llm/groq"
	"roteiro/internal/llm/openai"
	"roteiro/internal/llm/poe"
	"roteiro/internal/settings"
)

// RegistryOptions carries adapter parameters that are not credentials.
type RegistryOptions struct {
	SearchEngineID string
	SearchCount    int
	HTTPClient     *http.Client
}

// DefaultRegistry wires every known provider to its adapter. The capability
// sets are fixed: only gemini can do all three, and google only searches.
func DefaultRegistry(opts RegistryOptions) Registry {
	compatible := func(provider settings.Provider, baseURL string, omitTemp func(string) bool) Factory {
		return func(_ context.Context, key string) (any, error) {
			return openai.NewClient(openai.Config{
				Provider:        string(provider),
				APIKey:          key,
				BaseURL:         baseURL,
				OmitTemperature: omitTemp,
				HTTPClient:      opts.HTTPClient,
			}), nil
		}
	}

	return Registry{
		settings.ProviderGemini: {
			Capabilities: CapText | CapImage | CapSearch,
			New: func(ctx context.Context, key string) (any, error) {
				client, err := gemini.NewClient(ctx, key, "")
				if err != nil {
					return nil, err
				}
				return client, nil
			},
		},
		settings.ProviderPoe: {
			Capabilities: CapText | CapImage,
			New: func(_ context.Context, key string) (any, error) {
				return poe.NewClient(key, "", opts.HTTPClient), nil
			},
		},
		settings.ProviderOpenAI: {
			Capabilities: CapText | CapImage,
			New:          compatible(settings.ProviderOpenAI, openai.OpenAIBaseURL, nil),
		},
		settings.ProviderDeepSeek: {
			Capabilities: CapText,
			New:          compatible(settings.ProviderDeepSeek, openai.DeepSeekBaseURL, openai.IsReasonerModel),
		},
		settings.ProviderGrok: {
			Capabilities: CapText,
			New:          compatible(settings.ProviderGrok, openai.GrokBaseURL, nil),
		},
		settings.ProviderAnthropic: {
			Capabilities: CapText,
			New: func(_ context.Context, key string) (any, error) {
				return anthropic.NewClient(key, anthropic.WithHTTPClient(opts.HTTPClient)), nil
			},
		},
		settings.ProviderGroq: {
			Capabilities: CapText,
			New: func(_ context.Context, key string) (any, error) {
				client, err := groq.NewClient(key, "")
				if err != nil {
					return nil, err
				}
				return client, nil
			},
		},
		settings.ProviderGoogle: {
			Capabilities: CapSearch,
			New: func(_ context.Context, key string) (any, error) {
				return googlesearch.NewClient(googlesearch.Config{
					APIKey:     key,
					EngineID:   opts.SearchEngineID,
					Count:      opts.SearchCount,
					HTTPClient: opts.HTTPClient,
				}), nil
			},
		},
	}
}

// Capabilities reports what a provider can do under the default registry.
func Capabilities(p settings.Provider) Capability {
	return DefaultRegistry(RegistryOptions{})[p].Capabilities
}
