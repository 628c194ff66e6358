package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"roteiro/internal/llm"
	"roteiro/internal/speech"
)

const (
	baseURL  = "https://api.elevenlabs.io/v1"
	timeout  = 120 * time.Second
	provider = "elevenlabs"
)

var _ speech.Synthesizer = (*Client)(nil)

// Client synthesizes narration through the ElevenLabs text-to-speech API.
// Several keys rotate round-robin; a quota failure moves on to the next key.
type Client struct {
	apiKeys    []string
	keyIndex   uint64
	httpClient *http.Client
	voice      speech.Voice
	baseURL    string
}

type Config struct {
	APIKeys    []string
	Voice      speech.Voice
	BaseURL    string
	HTTPClient *http.Client
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func NewClient(cfg Config) (*Client, error) {
	var keys []string
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("elevenlabs api key: %w", llm.ErrMissingCredential)
	}

	voice := cfg.Voice
	def := speech.DefaultVoice()
	if voice.ID == "" {
		voice.ID = def.ID
	}
	if voice.Model == "" {
		voice.Model = def.Model
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = baseURL
	}

	return &Client{
		apiKeys:    keys,
		httpClient: httpClient,
		voice:      voice,
		baseURL:    base,
	}, nil
}

// Synthesize returns MPEG audio for req.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	text, err := speech.Prepare(req)
	if err != nil {
		return nil, err
	}
	voice := req.Resolve(c.voice)

	startKey := c.nextAPIKey()
	audio, err := c.doRequestWithKey(ctx, text, voice, startKey)
	if err == nil || !isQuotaError(err) {
		return audio, err
	}

	for i := 1; i < len(c.apiKeys); i++ {
		key := c.keyAtOffset(i)
		if key == startKey {
			continue
		}
		slog.Warn("ElevenLabs quota reached, rotating key", "attempt", i+1)
		audio, err = c.doRequestWithKey(ctx, text, voice, key)
		if err == nil || !isQuotaError(err) {
			return audio, err
		}
	}

	return nil, fmt.Errorf("all API keys exhausted: %w", err)
}

func (c *Client) nextAPIKey() string {
	if len(c.apiKeys) == 1 {
		return c.apiKeys[0]
	}
	idx := atomic.AddUint64(&c.keyIndex, 1)
	return c.apiKeys[idx%uint64(len(c.apiKeys))]
}

func (c *Client) keyAtOffset(offset int) string {
	idx := atomic.LoadUint64(&c.keyIndex)
	return c.apiKeys[(idx+uint64(offset))%uint64(len(c.apiKeys))]
}

func (c *Client) doRequestWithKey(ctx context.Context, text string, voice speech.Voice, apiKey string) ([]byte, error) {
	data, err := json.Marshal(request{
		Text:    text,
		ModelID: voice.Model,
		VoiceSettings: voiceSettings{
			Stability:       voice.Stability,
			SimilarityBoost: voice.SimilarityBoost,
			Style:           voice.Style,
			UseSpeakerBoost: voice.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voice.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: provider, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Message: errorMessage(resp.Status, body)}
	}
	if len(body) == 0 {
		return nil, &llm.UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Message: "empty audio"}
	}

	return body, nil
}

// errorMessage reads detail.message, or detail as a string, falling back to
// the HTTP status text.
func errorMessage(status string, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		return status
	}

	var detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(er.Detail, &detail); err == nil && detail.Message != "" {
		if detail.Status != "" {
			return detail.Status + ": " + detail.Message
		}
		return detail.Message
	}

	var text string
	if err := json.Unmarshal(er.Detail, &text); err == nil && text != "" {
		return text
	}
	return status
}

func isQuotaError(err error) bool {
	var ue *llm.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(ue.Message, "quota_exceeded") ||
		strings.Contains(ue.Message, "rate_limit")
}
