package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"roteiro/internal/llm"
)

const (
	searchModel           = "gemini-2.5-flash"
	defaultMaxTokens      = 8192
	defaultThinkingBudget = 1024
)

var (
	_ llm.TextGenerator  = (*Client)(nil)
	_ llm.ImageGenerator = (*Client)(nil)
	_ llm.ImageSearcher  = (*Client)(nil)
)

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpeg|jpg|png|webp)`)

var permissiveSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini API adapter. An empty baseURL uses the SDK
// default endpoint.
func NewClient(ctx context.Context, apiKey, baseURL string) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResult, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), textConfig(req))
	if err != nil {
		return nil, upstream(err)
	}
	return parseText(resp)
}

func (c *Client) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.Image, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, imageContents(req), imageConfig(req))
	if err != nil {
		return nil, upstream(err)
	}
	return parseImage(resp)
}

func (c *Client) SearchImages(ctx context.Context, query string) ([]llm.Image, error) {
	prompt := fmt.Sprintf("Find one high-quality 16:9 image about: %s. Return the direct image URL.", query)
	resp, err := c.client.Models.GenerateContent(ctx, searchModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return nil, upstream(err)
	}

	images := groundedImages(resp)
	slog.Debug("Grounded image search", "query", query, "results", len(images))
	return images, nil
}

func textConfig(req llm.TextRequest) *genai.GenerateContentConfig {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
		SafetySettings:  permissiveSafety,
	}

	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.EnableSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.EnableThinking {
		budget := req.ThinkingBudget
		if budget <= 0 {
			budget = defaultThinkingBudget
		}
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(budget))}
	}

	return cfg
}

func imageContents(req llm.ImageRequest) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		if !ref.Inline() {
			slog.Debug("Skipping remote reference image", "url", ref.URL)
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func imageConfig(req llm.ImageRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
		SafetySettings:     permissiveSafety,
	}
	if req.AspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}
	return cfg
}

func parseText(resp *genai.GenerateContentResponse) (*llm.TextResult, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, llm.ErrSafetyBlocked
		}
		return nil, llm.ErrNoTextReturned
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}

	text := sb.String()
	if text == "" {
		if cand.FinishReason == genai.FinishReasonSafety {
			return nil, llm.ErrSafetyBlocked
		}
		return nil, llm.ErrNoTextReturned
	}

	return &llm.TextResult{
		Text:         text,
		Truncated:    cand.FinishReason == genai.FinishReasonMaxTokens,
		FinishReason: string(cand.FinishReason),
	}, nil
}

func parseImage(resp *genai.GenerateContentResponse) (*llm.Image, error) {
	if len(resp.Candidates) == 0 {
		return nil, llm.ErrNoImageReturned
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &llm.Image{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
			}
		}
	}

	if cand.FinishReason == genai.FinishReasonSafety {
		return nil, llm.ErrSafetyBlocked
	}
	return nil, llm.ErrNoImageReturned
}

func groundedImages(resp *genai.GenerateContentResponse) []llm.Image {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var images []llm.Image
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if imageURLPattern.MatchString(chunk.Web.URI) {
			images = append(images, llm.Image{URL: chunk.Web.URI})
		}
	}
	return images
}

func upstream(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &llm.UpstreamError{Provider: "gemini", Err: err}
}
