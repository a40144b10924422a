// Package upstreamclient implements the HTTP Client Pool (C2): one reusable
// *http.Client per proxy profile, with connect/read timeouts and
// exponential-backoff retry limited to transient transport failures, per
// §4.7. Grounded on the shared-transport pattern used throughout the
// teacher's relay/adaptor/*/util.go DoRequest implementations and
// kristiansnts-apipod-smart-proxy's internal/upstream/openaicompat/client.go
// (a single shared http.Transport behind a Proxy wrapper).
package upstreamclient

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/laisky/relay-gateway/internal/logger"
)

// Profile configures one reusable client: a proxy URL (empty means the
// process's default environment proxy), connect timeout, and per-call
// timeout (the caller picks unary vs streaming timeout by context deadline
// instead of baking it into the client, since a stream has no fixed read
// timeout per §4.7).
type Profile struct {
	ProxyURL       string
	ConnectTimeout time.Duration
}

// RetryPolicy implements §4.7's backoff formula:
// min(retry_max_ms, retry_initial_ms * 2^attempt), capped at
// retry_max_attempts.
type RetryPolicy struct {
	MaxAttempts int
	InitialMs   int
	MaxMs       int
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	ms := float64(p.InitialMs) * math.Pow(2, float64(attempt))
	if ms > float64(p.MaxMs) {
		ms = float64(p.MaxMs)
	}
	return time.Duration(ms) * time.Millisecond
}

// Pool caches one *http.Client per distinct Profile, so repeated requests
// against the same proxy profile reuse connections.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*http.Client
	retry   RetryPolicy
}

// NewPool constructs a client pool with the given retry policy.
func NewPool(retry RetryPolicy) *Pool {
	return &Pool{
		clients: make(map[string]*http.Client),
		retry:   retry,
	}
}

func (p *Pool) clientFor(profile Profile) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := profile.ProxyURL
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: profile.ConnectTimeout,
		}).DialContext,
	}
	if profile.ProxyURL != "" {
		proxyURL, err := url.Parse(profile.ProxyURL)
		if err != nil {
			return nil, errors.Wrapf(err, "parse proxy url %q", profile.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	client := &http.Client{Transport: transport}
	p.clients[key] = client
	return client, nil
}

// isTransient reports whether an error/response pair is retryable per
// §4.7: connection reset, 5xx from upstream, or 429 with no body.
func isTransient(err error, resp *http.Response) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	if resp.StatusCode >= 500 {
		return true
	}
	if resp.StatusCode == http.StatusTooManyRequests && resp.ContentLength == 0 {
		return true
	}
	return false
}

// Do executes req against the named profile, retrying transient failures
// with exponential backoff. Retries are silent (logged at most DEBUG) until
// the final failure, per §4.7: "Retries are silent (not logged at ERROR)
// until the final failure." newBody, when non-nil, rebuilds the request
// body for each attempt (http.Request bodies are single-use).
func (p *Pool) Do(ctx context.Context, profile Profile, req *http.Request, newBody func() io.ReadCloser) (*http.Response, error) {
	client, err := p.clientFor(profile)
	if err != nil {
		return nil, err
	}

	var lastErr error
	var lastResp *http.Response

	maxAttempts := p.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptReq := req.Clone(ctx)
		if newBody != nil {
			attemptReq.Body = newBody()
		}

		resp, err := client.Do(attemptReq)
		if !isTransient(err, resp) {
			return resp, err
		}

		lastErr, lastResp = err, resp
		if attempt == maxAttempts-1 {
			break
		}

		wait := p.retry.backoff(attempt)
		logger.Logger.Debug("retrying transient upstream failure",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	if lastErr != nil {
		return nil, errors.Wrap(lastErr, "upstream request failed after retries")
	}
	return lastResp, nil
}
