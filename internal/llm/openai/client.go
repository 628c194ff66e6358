package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"roteiro/internal/llm"
)

const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com"
	GrokBaseURL     = "https://api.x.ai/v1"

	defaultTimeout    = 180 * time.Second
	defaultImageModel = "dall-e-3"
	defaultImageSize  = "1024x1024"
	roleSystem        = "system"
	roleUser          = "user"
	finishLength      = "length"
	finishFilter      = "content_filter"
)

var (
	_ llm.TextGenerator  = (*Client)(nil)
	_ llm.ImageGenerator = (*Client)(nil)
)

// Config describes one OpenAI-compatible vendor.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string

	// ExtraBody returns vendor extension fields sent as "extra_body".
	ExtraBody func(req llm.TextRequest) map[string]any
	// OmitTemperature reports models that reject the temperature field.
	OmitTemperature func(model string) bool
	// ImageBody builds the images/generations payload. Nil uses the
	// OpenAI shape.
	ImageBody func(req llm.ImageRequest) map[string]any

	HTTPClient *http.Client
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []message      `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	ExtraBody   map[string]any `json:"extra_body,omitempty"`
}

type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	return &Client{cfg: cfg, httpClient: httpClient}
}

// IsReasonerModel matches DeepSeek reasoning models, which reject temperature.
func IsReasonerModel(model string) bool {
	return strings.Contains(model, "reasoner")
}

func (c *Client) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResult, error) {
	messages := make([]message, 0, 2)
	if req.System != "" {
		messages = append(messages, message{Role: roleSystem, Content: req.System})
	}
	messages = append(messages, message{Role: roleUser, Content: req.Prompt})

	body := chatRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxOutputTokens,
	}
	if c.cfg.OmitTemperature == nil || !c.cfg.OmitTemperature(req.Model) {
		temp := req.Temperature
		body.Temperature = &temp
	}
	if c.cfg.ExtraBody != nil {
		if extra := c.cfg.ExtraBody(req); len(extra) > 0 {
			body.ExtraBody = extra
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.doRequest(ctx, "/chat/completions", data)
	if err != nil {
		return nil, err
	}

	return c.parseChat(respBody, req.EnableThinking)
}

func (c *Client) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.Image, error) {
	if len(req.References) > 0 {
		slog.Debug("Reference images are not forwarded by this provider", "provider", c.cfg.Provider, "count", len(req.References))
	}

	build := c.cfg.ImageBody
	if build == nil {
		build = openAIImageBody
	}

	data, err := json.Marshal(build(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.doRequest(ctx, "/images/generations", data)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, llm.ErrNoImageReturned
	}

	first := resp.Data[0]
	switch {
	case first.URL != "":
		return &llm.Image{URL: first.URL}, nil
	case first.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return &llm.Image{MIMEType: "image/png", Data: raw}, nil
	default:
		return nil, llm.ErrNoImageReturned
	}
}

func openAIImageBody(req llm.ImageRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = defaultImageModel
	}
	size := req.Resolution
	if size == "" {
		size = defaultImageSize
	}
	return map[string]any{
		"model":   model,
		"prompt":  req.Prompt,
		"n":       1,
		"size":    size,
		"quality": "standard",
	}
}

func (c *Client) doRequest(ctx context.Context, path string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: c.cfg.Provider, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &llm.UpstreamError{
			Provider:   c.cfg.Provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	return body, nil
}

func (c *Client) parseChat(body []byte, thinking bool) (*llm.TextResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		return nil, &llm.UpstreamError{Provider: c.cfg.Provider, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoTextReturned
	}

	ch := resp.Choices[0]
	content := ch.Message.Content
	if content == "" {
		if ch.FinishReason == finishFilter {
			return nil, llm.ErrSafetyBlocked
		}
		return nil, llm.ErrNoTextReturned
	}

	if thinking && ch.Message.ReasoningContent != "" {
		content = fmt.Sprintf("[Thinking Process]\n%s\n\n[Response]\n%s", ch.Message.ReasoningContent, content)
	}

	return &llm.TextResult{
		Text:         content,
		Truncated:    ch.FinishReason == finishLength,
		FinishReason: ch.FinishReason,
	}, nil
}

func errorMessage(body []byte) string {
	var wrapped struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(body))
}
