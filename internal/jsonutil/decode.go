// Package jsonutil decodes structured model output that may arrive wrapped
// in markdown code fences or surrounded by prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no json content found")

var fenced = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// StripFences returns the body of the first fenced block, or the trimmed
// text when there is none.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fenced.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// Extract returns the span from the first '{' or '[' to the last matching
// closing delimiter.
func Extract(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}

	closing := "}"
	if text[start] == '[' {
		closing = "]"
	}

	end := strings.LastIndex(text, closing)
	if end < start {
		return "", fmt.Errorf("unterminated %c: %w", text[start], ErrNoJSON)
	}
	return text[start : end+1], nil
}

// Decode strips fences, extracts the JSON span and unmarshals it into T.
func Decode[T any](raw string) (T, error) {
	var out T

	span, err := Extract(StripFences(raw))
	if err != nil {
		return out, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return out, fmt.Errorf("decode json: %w (text: %s)", err, preview(span))
	}
	return out, nil
}

func preview(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
