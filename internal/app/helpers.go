package app

import (
	"net/http"
	"path"
	"regexp"
	"strings"

	"roteiro/internal/pipeline"
)

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// slug turns a title into a storage-safe key segment of at most 50 bytes.
func slug(s string) string {
	s = strings.ToLower(s)
	s = sanitizeRegex.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "_")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

func scriptDir(state pipeline.ScriptState) string {
	name := state.Config.Topic
	if name == "" {
		name = string(state.Config.ChannelType)
	}
	id := state.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return path.Join("scripts", slug(name)+"_"+id)
}

func audioType(data []byte) (string, string) {
	if http.DetectContentType(data) == "audio/wave" {
		return "audio/wav", ".wav"
	}
	return "audio/mpeg", ".mp3"
}
