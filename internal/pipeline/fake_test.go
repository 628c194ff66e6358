package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"roteiro/internal/llm"
	"roteiro/pkg/prompts"
)

var errUpstream = errors.New("upstream exploded")

// fakeGateway answers text prompts through the first rule whose marker the
// prompt contains and records every call in order.
type fakeGateway struct {
	mu      sync.Mutex
	rules   []rule
	calls   []string
	prompts []string

	search func(query string) ([]llm.Image, error)
	image  func(prompt string) (*llm.Image, error)
}

type rule struct {
	marker string
	reply  func(prompt string) (string, error)
}

func reply(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

func fail(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}

func (f *fakeGateway) on(marker string, fn func(string) (string, error)) *fakeGateway {
	f.rules = append(f.rules, rule{marker: marker, reply: fn})
	return f
}

func (f *fakeGateway) GenerateText(_ context.Context, prompt, _ string) (*llm.TextResult, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	for _, r := range f.rules {
		if strings.Contains(prompt, r.marker) {
			f.record("text:" + r.marker)
			text, err := r.reply(prompt)
			if err != nil {
				return nil, err
			}
			return &llm.TextResult{Text: text}, nil
		}
	}
	f.record("text:unmatched")
	return &llm.TextResult{Text: "unmatched"}, nil
}

func (f *fakeGateway) GenerateImage(_ context.Context, prompt string, _ []llm.Image) (*llm.Image, error) {
	f.record("image:" + prompt)
	if f.image != nil {
		return f.image(prompt)
	}
	return &llm.Image{URL: "https://img.example.com/" + strings.ReplaceAll(prompt, " ", "-")}, nil
}

func (f *fakeGateway) SearchImages(_ context.Context, query string) ([]llm.Image, error) {
	f.record("search:" + query)
	if f.search != nil {
		return f.search(query)
	}
	return nil, nil
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// promptWith returns the first recorded prompt containing marker.
func (f *fakeGateway) promptWith(marker string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prompts {
		if strings.Contains(p, marker) {
			return p
		}
	}
	return ""
}

func defaultPrompts(t *testing.T) *prompts.Prompts {
	t.Helper()
	p, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts.Default() error = %v", err)
	}
	return p
}
