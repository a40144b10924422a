// Package provider implements the Provider Handlers (C7): one handler per
// upstream API style (OpenAI, Anthropic, Gemini), each knowing how to build
// the outbound URL, attach the provider's auth convention, and run a
// unary-or-streaming call against the shared HTTP client pool, per §4.3.
// Grounded on relay/adaptor/interface.go's Adaptor interface (Init /
// GetRequestURL / SetupRequestHeader / DoRequest / DoResponse), narrowed
// to the gateway's forward-only responsibilities.
package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
)

// StreamFrame is one normalized frame handed to the caller's sink during
// streaming, already translated to the caller's desired wire format.
type StreamFrame struct {
	// Raw is the exact bytes to write to the client for this frame
	// (an SSE "data: ...\n\n" block, or one NDJSON line, depending on
	// the ingress format the caller is rendering for).
	Raw []byte
	// Done marks the terminal frame; no more frames follow.
	Done bool
}

// Sink receives normalized stream frames in order.
type Sink interface {
	Write(frame StreamFrame) error
}

// Handler is the narrow per-provider contract: build the request, attach
// auth, run it (with the shared retrying client pool), and hand back either
// a buffered response or a stream of frames. handle_unary / handle_stream
// from §4.3.
type Handler interface {
	// RequestURL builds the outbound URL for one upstream endpoint
	// candidate. Providers that put the model in the URL use
	// route.UpstreamModelID, not the caller-visible model id.
	RequestURL(endpoint string, route gwconfig.Route, streaming bool) string

	// SetupHeaders attaches the provider's auth convention (§4.3) to an
	// outbound request.
	SetupHeaders(req *http.Request, up gwconfig.Upstream)

	// HandleUnary runs a non-streaming call and returns the raw
	// upstream body (already status-checked).
	HandleUnary(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte) ([]byte, *gwerrors.Error)

	// HandleStream runs a streaming call, feeding normalized frames to
	// sink as they arrive. Returns once the stream is fully drained or
	// ctx is cancelled.
	HandleStream(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte, sink Sink) *gwerrors.Error
}

// profileFor derives an upstreamclient.Profile from an Upstream's proxy
// setting and the configured connect timeout.
func profileFor(up gwconfig.Upstream) upstreamclient.Profile {
	return upstreamclient.Profile{
		ProxyURL:       up.ProxyURL,
		ConnectTimeout: time.Duration(gwconfig.ConnectTimeoutSec) * time.Second,
	}
}

// doUnary is the shared non-streaming call path: build the request, run it
// through the pool, classify the response.
func doUnary(ctx context.Context, pool *upstreamclient.Pool, profile upstreamclient.Profile, method, url string, body []byte, setupHeaders func(*http.Request)) ([]byte, *gwerrors.Error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "failed to build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	setupHeaders(req)

	resp, doErr := pool.Do(ctx, profile, req, func() io.ReadCloser {
		return io.NopCloser(bytes.NewReader(body))
	})
	if doErr != nil {
		return nil, gwerrors.New(gwerrors.KindUpstreamTimeout, doErr.Error())
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, gwerrors.New(gwerrors.KindUpstreamHTTPError, "failed to read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerrors.FromUpstreamResponse(&http.Response{StatusCode: resp.StatusCode, Body: io.NopCloser(bytes.NewReader(respBody))})
	}

	return respBody, nil
}

// doStream is the shared streaming call path: build the request, run it,
// and hand the raw body reader to the caller's frame-by-frame consumer.
func doStream(ctx context.Context, pool *upstreamclient.Pool, profile upstreamclient.Profile, method, url string, body []byte, setupHeaders func(*http.Request), consume func(io.Reader) *gwerrors.Error) *gwerrors.Error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return gwerrors.New(gwerrors.KindInvalidRequest, "failed to build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	setupHeaders(req)

	resp, doErr := pool.Do(ctx, profile, req, func() io.ReadCloser {
		return io.NopCloser(bytes.NewReader(body))
	})
	if doErr != nil {
		return gwerrors.New(gwerrors.KindUpstreamTimeout, doErr.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return gwerrors.FromUpstreamResponse(&http.Response{StatusCode: resp.StatusCode, Body: io.NopCloser(bytes.NewReader(respBody))})
	}

	return consume(resp.Body)
}
