package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/signature"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// Per-attempt timeout bounds. A configured timeout outside this range is
// clamped: too short burns the retry budget on slow-but-healthy receivers,
// too long ties up the worker.
const (
	MinRequestTimeout     = 2 * time.Second
	MaxRequestTimeout     = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// ClampTimeout bounds a per-attempt timeout into [MinRequestTimeout,
// MaxRequestTimeout]. A zero or negative value falls back to the default.
func ClampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultRequestTimeout
	}
	if timeout < MinRequestTimeout {
		return MinRequestTimeout
	}
	if timeout > MaxRequestTimeout {
		return MaxRequestTimeout
	}
	return timeout
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-attempt HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: ClampTimeout(timeout)},
	}
}

// Send delivers an envelope to an endpoint and returns the result. The
// payload bytes go out exactly as published; the signature covers the raw
// body, so any re-serialization would break verification on the receiver.
func (s *Sender) Send(ctx context.Context, ep *endpoint.Endpoint, env *Envelope) Result {
	body := []byte(env.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Standard headers.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SmartPay-Notify/1.0")
	req.Header.Set("X-SmartPay-Envelope-ID", env.ID.String())
	req.Header.Set("X-SmartPay-Topic", env.Topic)
	req.Header.Set("X-SmartPay-Tenant", env.TenantID)
	req.Header.Set("X-SmartPay-Attempt", strconv.Itoa(env.Attempt))

	// HMAC signature. The header carries the timestamp, so receivers can
	// verify and reject replays from the signature alone.
	ts := time.Now().Unix()
	req.Header.Set("X-SmartPay-Signature", signature.Sign(body, ep.Secret, ts))

	// Custom endpoint headers.
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a merchant-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
}
