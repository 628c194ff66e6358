package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestClient(server *httptest.Server, cfg RetryConfig) *http.Client {
	return &http.Client{Transport: NewTransport(server.Client().Transport, cfg)}
}

func TestTransportStatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		failStatus   int
		failures     int32
		wantStatus   int
		wantAttempts int32
	}{
		{name: "retries503", failStatus: http.StatusServiceUnavailable, failures: 2, wantStatus: http.StatusOK, wantAttempts: 3},
		{name: "retries429", failStatus: http.StatusTooManyRequests, failures: 1, wantStatus: http.StatusOK, wantAttempts: 2},
		{name: "retries500", failStatus: http.StatusInternalServerError, failures: 1, wantStatus: http.StatusOK, wantAttempts: 2},
		{name: "retries502", failStatus: http.StatusBadGateway, failures: 1, wantStatus: http.StatusOK, wantAttempts: 2},
		{name: "keeps400", failStatus: http.StatusBadRequest, failures: 10, wantStatus: http.StatusBadRequest, wantAttempts: 1},
		{name: "keeps401", failStatus: http.StatusUnauthorized, failures: 10, wantStatus: http.StatusUnauthorized, wantAttempts: 1},
		{name: "keeps404", failStatus: http.StatusNotFound, failures: 10, wantStatus: http.StatusNotFound, wantAttempts: 1},
		{name: "givesUpAfterMax", failStatus: http.StatusServiceUnavailable, failures: 10, wantStatus: http.StatusServiceUnavailable, wantAttempts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&attempts, 1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			resp, err := newTestClient(server, fastConfig(3)).Get(server.URL)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestTransportReplaysBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		n := len(bodies)
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	const content = `{"text":"hello"}`
	resp, err := newTestClient(server, fastConfig(3)).Post(server.URL, "application/json", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("attempts = %d, want 2", len(bodies))
	}
	for i, b := range bodies {
		if b != content {
			t.Errorf("attempt %d body = %q, want %q", i+1, b, content)
		}
	}
}

func TestTransportHonoursRetryAfter(t *testing.T) {
	var attempts int32
	var first, second time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		second = time.Now()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig(1)
	cfg.InitialDelay = 2 * time.Second
	cfg.MaxDelay = 2 * time.Second

	resp, err := newTestClient(server, cfg).Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if gap := second.Sub(first); gap > time.Second {
		t.Errorf("waited %v, want Retry-After of 0 to skip the backoff", gap)
	}
}

func TestTransportStopsOnCancelledContext(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastConfig(5)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	start := time.Now()
	_, err := newTestClient(server, cfg).Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want context error")
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("backoff sleep ignored the context deadline")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestTransportBackoffGrows(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		n := len(stamps)
		mu.Unlock()
		if n < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := newTestClient(server, RetryConfig{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}).Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if len(stamps) != 4 {
		t.Fatalf("attempts = %d, want 4", len(stamps))
	}
	expected := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, want := range expected {
		got := stamps[i+1].Sub(stamps[i])
		if got < want/2 || got > want*3/2 {
			t.Errorf("delay %d = %v, want about %v", i+1, got, want)
		}
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	tr := NewTransport(nil, RetryConfig{})

	if tr.Base != http.DefaultTransport {
		t.Error("Base is not http.DefaultTransport")
	}
	if tr.Config != DefaultRetryConfig() {
		t.Errorf("Config = %+v, want %+v", tr.Config, DefaultRetryConfig())
	}

	client := NewClient(30*time.Second, RetryConfig{})
	if client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", client.Timeout)
	}
	if _, ok := client.Transport.(*Transport); !ok {
		t.Errorf("Transport = %T, want *Transport", client.Transport)
	}
}
