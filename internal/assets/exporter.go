// Package assets writes generated images and artifacts into a storage.Store.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"roteiro/internal/llm"
	"roteiro/internal/pipeline"
	"roteiro/internal/storage"
)

const (
	maxDownloadBytes = 25 << 20
	downloadTimeout  = 60 * time.Second
)

var ErrEmptyImage = errors.New("image has neither data nor url")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Exporter struct {
	store      storage.Store
	httpClient *http.Client
}

// NewExporter exports into store. Remote images are downloaded with
// httpClient, a plain client with a timeout when nil.
func NewExporter(store storage.Store, httpClient *http.Client) *Exporter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: downloadTimeout}
	}
	return &Exporter{store: store, httpClient: httpClient}
}

// ExportImage stores img under key, appending an extension derived from
// its MIME type when key has none.
func (e *Exporter) ExportImage(ctx context.Context, key string, img llm.Image) (storage.Object, error) {
	data, mimeType := img.Data, img.MIMEType
	if !img.Inline() {
		if img.URL == "" {
			return storage.Object{}, ErrEmptyImage
		}
		var err error
		data, mimeType, err = e.download(ctx, img.URL)
		if err != nil {
			return storage.Object{}, err
		}
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	if path.Ext(key) == "" {
		key += extension(mimeType)
	}
	return e.store.Save(ctx, key, data, mimeType)
}

func (e *Exporter) ExportJSON(ctx context.Context, key string, v any) (storage.Object, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return storage.Object{}, fmt.Errorf("marshal %s: %w", key, err)
	}
	return e.store.Save(ctx, key, data, "application/json")
}

func (e *Exporter) ExportText(ctx context.Context, key, text string) (storage.Object, error) {
	return e.store.Save(ctx, key, []byte(text), "text/plain; charset=utf-8")
}

// ExportedSegment is a manifest entry: the segment without inline image
// bytes, pointing at the stored image instead.
type ExportedSegment struct {
	pipeline.Segment
	Asset string `json:"asset,omitempty"`
}

// ExportBRoll stores every resolved segment image under broll/<runID>/ and
// writes a manifest. A failed image export is recorded on its entry and
// does not stop the others.
func (e *Exporter) ExportBRoll(ctx context.Context, runID string, segments []pipeline.Segment) (storage.Object, error) {
	dir := path.Join("broll", runID)
	manifest := make([]ExportedSegment, 0, len(segments))

	for _, s := range segments {
		entry := ExportedSegment{Segment: s}
		if s.Image != nil {
			entry.Image = &llm.Image{URL: s.Image.URL, MIMEType: s.Image.MIMEType}
			obj, err := e.ExportImage(ctx, path.Join(dir, s.ID), *s.Image)
			if err != nil {
				slog.Warn("B-roll image export failed", "segment", s.ID, "error", err)
				if entry.Error == "" {
					entry.Error = "export: " + err.Error()
				}
			} else {
				entry.Asset = obj.Location
				entry.Image.MIMEType = obj.ContentType
			}
		}
		manifest = append(manifest, entry)
	}

	return e.ExportJSON(ctx, path.Join(dir, "segments.json"), manifest)
}

func (e *Exporter) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxDownloadBytes)
	}

	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mimeType = strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func extension(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
