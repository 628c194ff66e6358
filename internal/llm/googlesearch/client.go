package googlesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"roteiro/internal/llm"
)

const (
	baseURL        = "https://www.googleapis.com/customsearch/v1"
	defaultTimeout = 15 * time.Second
	defaultCount   = 3
	maxCount       = 10
)

var _ llm.ImageSearcher = (*Client)(nil)

// Client searches images through the Google Custom Search JSON API.
type Client struct {
	apiKey     string
	engineID   string
	count      int
	httpClient *http.Client
	baseURL    string
}

type Config struct {
	APIKey     string
	EngineID   string
	Count      int
	HTTPClient *http.Client
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title string    `json:"title"`
	Link  string    `json:"link"`
	Mime  string    `json:"mime"`
	Image imageInfo `json:"image"`
}

type imageInfo struct {
	ThumbnailLink string `json:"thumbnailLink"`
}

func NewClient(cfg Config) *Client {
	count := cfg.Count
	if count <= 0 {
		count = defaultCount
	}
	if count > maxCount {
		count = maxCount
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		count:      count,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func (c *Client) SearchImages(ctx context.Context, query string) ([]llm.Image, error) {
	if c.engineID == "" {
		return nil, fmt.Errorf("google search engine id: %w", llm.ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(c.count))
	params.Set("safe", "active")
	params.Set("imgSize", "large")
	params.Set("imgType", "photo")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.UpstreamError{Provider: "google", Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.UpstreamError{Provider: "google", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	images := make([]llm.Image, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.Link == "" {
			continue
		}
		images = append(images, llm.Image{URL: item.Link, MIMEType: item.Mime})
	}

	return images, nil
}
