package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roteiro/internal/llm"
)

type groqChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type groqResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []groqChoice `json:"choices"`
}

// makeGroqResponse creates a valid Groq API response with the given content
func makeGroqResponse(content, finish string) groqResponse {
	ch := groqChoice{FinishReason: finish}
	ch.Message.Role = "assistant"
	ch.Message.Content = content
	return groqResponse{
		ID:      "test-id",
		Object:  "chat.completion",
		Created: 1234567890,
		Model:   "llama-3.3-70b-versatile",
		Choices: []groqChoice{ch},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestGenerateText(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		responseBody  func(t *testing.T) string
		wantText      string
		wantTruncated bool
		wantErr       error
		wantUpstream  bool
	}{
		{
			name:         "success",
			status:       http.StatusOK,
			responseBody: func(t *testing.T) string { return mustJSON(t, makeGroqResponse("Hello", "stop")) },
			wantText:     "Hello",
		},
		{
			name:          "truncated",
			status:        http.StatusOK,
			responseBody:  func(t *testing.T) string { return mustJSON(t, makeGroqResponse("hel", "length")) },
			wantText:      "hel",
			wantTruncated: true,
		},
		{
			name:   "noChoices",
			status: http.StatusOK,
			responseBody: func(t *testing.T) string {
				resp := makeGroqResponse("", "stop")
				resp.Choices = nil
				return mustJSON(t, resp)
			},
			wantErr: llm.ErrNoTextReturned,
		},
		{
			name:         "emptyContent",
			status:       http.StatusOK,
			responseBody: func(t *testing.T) string { return mustJSON(t, makeGroqResponse("", "stop")) },
			wantErr:      llm.ErrNoTextReturned,
		},
		{
			name:   "serverError",
			status: http.StatusInternalServerError,
			responseBody: func(t *testing.T) string {
				return `{"error":{"message":"internal error","type":"server_error"}}`
			},
			wantUpstream: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSystem, gotUser string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Messages []struct {
						Role    string `json:"role"`
						Content string `json:"content"`
					} `json:"messages"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)
				for _, m := range req.Messages {
					switch m.Role {
					case "system":
						gotSystem = m.Content
					case "user":
						gotUser = m.Content
					}
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.responseBody(t)))
			}))
			defer server.Close()

			client, err := NewClient("test-api-key", server.URL+"/")
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}

			got, err := client.GenerateText(context.Background(), llm.TextRequest{
				Model:       "llama-3.3-70b-versatile",
				Prompt:      "say hello",
				System:      "be brief",
				Temperature: 0.7,
			})

			if tt.wantUpstream {
				var upstream *llm.UpstreamError
				if !errors.As(err, &upstream) {
					t.Fatalf("GenerateText() error = %v, want UpstreamError", err)
				}
				if !strings.Contains(err.Error(), "generate") {
					t.Errorf("GenerateText() error = %q, want containing generate", err.Error())
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GenerateText() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateText() error = %v", err)
			}

			if gotSystem != "be brief" || gotUser != "say hello" {
				t.Errorf("messages = (%q, %q), want (be brief, say hello)", gotSystem, gotUser)
			}
			if got.Text != tt.wantText {
				t.Errorf("GenerateText() = %q, want %q", got.Text, tt.wantText)
			}
			if got.Truncated != tt.wantTruncated {
				t.Errorf("Truncated = %v, want %v", got.Truncated, tt.wantTruncated)
			}
		})
	}
}
