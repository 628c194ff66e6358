package groq

import (
	"context"
	"fmt"

	"github.com/conneroisu/groq-go"

	"roteiro/internal/llm"
)

var _ llm.TextGenerator = (*Client)(nil)

type Client struct {
	client *groq.Client
}

// NewClient creates a Groq adapter. An empty baseURL uses the SDK default.
func NewClient(apiKey, baseURL string) (*Client, error) {
	var (
		client *groq.Client
		err    error
	)
	if baseURL != "" {
		client, err = groq.NewClient(apiKey, groq.WithBaseURL(baseURL))
	} else {
		client, err = groq.NewClient(apiKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResult, error) {
	messages := make([]groq.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleSystem, Content: req.System})
	}
	messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleUser, Content: req.Prompt})

	resp, err := c.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:       groq.ChatModel(req.Model),
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxOutputTokens,
	})
	if err != nil {
		return nil, &llm.UpstreamError{Provider: "groq", Err: fmt.Errorf("generate: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoTextReturned
	}

	finish := string(resp.Choices[0].FinishReason)
	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, llm.ErrNoTextReturned
	}

	return &llm.TextResult{
		Text:         content,
		Truncated:    finish == "length",
		FinishReason: finish,
	}, nil
}
