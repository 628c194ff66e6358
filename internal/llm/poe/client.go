package poe

import (
	"net/http"

	"roteiro/internal/llm"
	"roteiro/internal/llm/openai"
)

const (
	BaseURL       = "https://api.poe.com/v1"
	defaultAspect = "16:9"
)

// NewClient returns an OpenAI-compatible client that adds Poe's extension
// fields for web search and reasoning.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return openai.NewClient(openai.Config{
		Provider:   "poe",
		APIKey:     apiKey,
		BaseURL:    baseURL,
		ExtraBody:  extraBody,
		ImageBody:  imageBody,
		HTTPClient: httpClient,
	})
}

func extraBody(req llm.TextRequest) map[string]any {
	extra := map[string]any{}
	if req.EnableSearch {
		extra["web_search"] = true
	}
	if req.EnableThinking {
		extra["thinking_budget"] = req.ThinkingBudget
		extra["reasoning_effort"] = "high"
	}
	return extra
}

func imageBody(req llm.ImageRequest) map[string]any {
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = defaultAspect
	}
	return map[string]any{
		"model":        req.Model,
		"prompt":       req.Prompt,
		"aspect_ratio": aspect,
	}
}
