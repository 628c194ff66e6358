package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "minted", incoming: ""},
		{name: "reused", incoming: "trace-42", wantSame: true},
		{name: "tooLong", incoming: strings.Repeat("x", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if seen == "" || rr.Header().Get("X-Request-ID") != seen {
				t.Fatalf("context id = %q, header = %q", seen, rr.Header().Get("X-Request-ID"))
			}
			if (seen == tt.incoming) != tt.wantSame {
				t.Errorf("request id = %q, incoming %q", seen, tt.incoming)
			}
		})
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestIDMiddleware()(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/scripts", nil))

	line := buf.String()
	for _, want := range []string{"method=POST", "path=/scripts", "status=418", "request_id="} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimitMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AuditRequest
		if !decode(w, r, &req) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(`{"text": "`+strings.Repeat("a", 64)+`"}`)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status code = %d, want 413", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", rr.Code)
	}
}
