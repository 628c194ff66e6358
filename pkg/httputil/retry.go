package httputil

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Transport retries idempotent failures (network errors, 429 and 5xx)
// with jittered exponential backoff. A request whose body cannot be
// replayed is sent once.
type Transport struct {
	Base   http.RoundTripper
	Config RetryConfig
}

func NewTransport(base http.RoundTripper, config RetryConfig) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Config: config.withDefaults()}
}

// NewClient returns an http.Client whose transport retries. timeout bounds
// the whole exchange including retries.
func NewClient(timeout time.Duration, config RetryConfig) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(nil, config),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	cfg := t.Config.withDefaults()
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	delay := cfg.InitialDelay

	var resp *http.Response
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := applyJitter(delay)
			if ra, ok := retryAfter(resp); ok {
				wait = min(ra, cfg.MaxDelay)
			}
			if resp != nil {
				_ = resp.Body.Close()
			}
			if sleepErr := sleep(req.Context(), wait); sleepErr != nil {
				return nil, sleepErr
			}
			delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
		}

		attemptReq := req
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			attemptReq = req.Clone(req.Context())
			attemptReq.Body = body
		}

		resp, err = base.RoundTrip(attemptReq)
		if !replayable || attempt == cfg.MaxRetries || !shouldRetry(resp, err) {
			return resp, err
		}
	}

	return resp, err
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return true
		}
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	return resp.StatusCode >= 500 && resp.StatusCode < 600
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func applyJitter(delay time.Duration) time.Duration {
	jitterFactor := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(delay) * jitterFactor)
}
