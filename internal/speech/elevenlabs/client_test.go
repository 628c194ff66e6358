package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"roteiro/internal/llm"
	"roteiro/internal/speech"
)

func newTestClient(t *testing.T, server *httptest.Server, keys ...string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKeys:    keys,
		Voice:      speech.DefaultVoice(),
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantKeys int
		wantErr  error
	}{
		{name: "single", keys: []string{"k1"}, wantKeys: 1},
		{name: "trimsBlank", keys: []string{" k1 ", "", "k2"}, wantKeys: 2},
		{name: "none", keys: []string{"", "  "}, wantErr: llm.ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Config{APIKeys: tt.keys})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewClient() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(c.apiKeys) != tt.wantKeys {
				t.Errorf("apiKeys = %v, want %d keys", c.apiKeys, tt.wantKeys)
			}
			if c.voice.ID != speech.DefaultVoiceID || c.voice.Model != speech.DefaultModel {
				t.Errorf("voice = %+v, want defaults", c.voice)
			}
			if c.baseURL != baseURL {
				t.Errorf("baseURL = %q", c.baseURL)
			}
		})
	}
}

func TestSynthesize(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Error("missing or incorrect API key header")
		}
		if r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.URL.Path != "/text-to-speech/voice-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	c := newTestClient(t, server, "test-key")
	audio, err := c.Synthesize(context.Background(), speech.Request{
		Text:      "<speak><p>Hello there.</p><break time=\"1s\"/><p>Bye.</p></speak>",
		StripSSML: true,
		Voice:     &speech.Voice{ID: "voice-9", Stability: 0.3, SimilarityBoost: 0.9, Style: 0.2, SpeakerBoost: true},
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}

	if got.Text != "Hello there.\n\nBye." {
		t.Errorf("text = %q, want markup stripped", got.Text)
	}
	if got.ModelID != speech.DefaultModel {
		t.Errorf("model_id = %q, want %q", got.ModelID, speech.DefaultModel)
	}
	want := voiceSettings{Stability: 0.3, SimilarityBoost: 0.9, Style: 0.2, UseSpeakerBoost: true}
	if got.VoiceSettings != want {
		t.Errorf("voice_settings = %+v, want %+v", got.VoiceSettings, want)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "detailObject", status: http.StatusUnauthorized, body: `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`, wantStatus: 401, wantMsg: "Invalid API key"},
		{name: "detailString", status: http.StatusBadRequest, body: `{"detail":"voice not found"}`, wantStatus: 400, wantMsg: "voice not found"},
		{name: "plainBody", status: http.StatusInternalServerError, body: "oops", wantStatus: 500, wantMsg: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server, "k").Synthesize(context.Background(), speech.Request{Text: "hi"})
			var ue *llm.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("Synthesize() error = %v, want *llm.UpstreamError", err)
			}
			if ue.StatusCode != tt.wantStatus || !strings.Contains(ue.Message, tt.wantMsg) {
				t.Errorf("UpstreamError = %+v", ue)
			}
		})
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for empty text")
	}))
	defer server.Close()

	_, err := newTestClient(t, server, "k").Synthesize(context.Background(), speech.Request{Text: "<speak></speak>", StripSSML: true})
	if !errors.Is(err, speech.ErrEmptyText) {
		t.Errorf("Synthesize() error = %v, want ErrEmptyText", err)
	}
}

func TestKeyRotationOnQuota(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("xi-api-key")
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		if key == "spent" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":{"status":"quota_exceeded","message":"quota reached"}}`))
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	c := newTestClient(t, server, "spent", "fresh")
	c.keyIndex = 1 // next key is index 0

	audio, err := c.Synthesize(context.Background(), speech.Request{Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "audio" {
		t.Errorf("audio = %q", audio)
	}
	if strings.Join(seen, ",") != "spent,fresh" {
		t.Errorf("keys used = %v, want spent then fresh", seen)
	}
}

func TestAllKeysExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(t, server, "a", "b").Synthesize(context.Background(), speech.Request{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "exhausted") {
		t.Errorf("Synthesize() error = %v, want exhausted keys", err)
	}
}
