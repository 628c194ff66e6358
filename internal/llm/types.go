package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// TextRequest carries one text generation call. Zero values mean the
// adapter's own defaults apply.
type TextRequest struct {
	Model           string
	Prompt          string
	System          string
	Temperature     float64
	MaxOutputTokens int
	EnableThinking  bool
	ThinkingBudget  int
	EnableSearch    bool
}

type TextResult struct {
	Text      string
	Truncated bool
	// FinishReason is the vendor's raw stop reason.
	FinishReason string
}

type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string
	References  []Image
}

// Image is an opaque image handle: either a remote URL or inline bytes.
type Image struct {
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

func (i Image) Inline() bool {
	return len(i.Data) > 0
}

// DataURI renders inline images as a data URI and returns the URL otherwise.
func (i Image) DataURI() string {
	if !i.Inline() {
		return i.URL
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURI decodes a base64 data URI into an inline image.
func ParseDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("data uri has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return Image{}, fmt.Errorf("data uri is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode data uri: %w", err)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// ImageFromString accepts either a data URI or a remote URL.
func ImageFromString(s string) (Image, error) {
	if strings.HasPrefix(s, "data:") {
		return ParseDataURI(s)
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Image{URL: s}, nil
	}
	return Image{}, fmt.Errorf("unsupported image reference %q", s)
}

type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

type ImageSearcher interface {
	SearchImages(ctx context.Context, query string) ([]Image, error)
}
