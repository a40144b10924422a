package provider

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
)

// OpenAIHandler talks to OpenAI-compatible upstreams: bearer-token auth,
// POST {endpoint}/chat/completions, SSE "data: {json}\n\n" streaming
// ended by a literal "data: [DONE]" frame. Grounded on
// relay/adaptor/openai/adaptor.go's GetRequestURL/SetupRequestHeader and
// openai_compatible/unified_streaming.go's SSE scan loop.
type OpenAIHandler struct{}

var _ Handler = OpenAIHandler{}

// RequestURL implements Handler.
func (OpenAIHandler) RequestURL(endpoint string, route gwconfig.Route, streaming bool) string {
	return strings.TrimRight(endpoint, "/") + "/chat/completions"
}

// SetupHeaders implements Handler, per §6: "Authorization: Bearer <api_key>".
func (OpenAIHandler) SetupHeaders(req *http.Request, up gwconfig.Upstream) {
	req.Header.Set("Authorization", "Bearer "+up.APIKey)
}

// HandleUnary implements Handler.
func (h OpenAIHandler) HandleUnary(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte) ([]byte, *gwerrors.Error) {
	url := h.RequestURL(endpointFor(up), route, false)
	return doUnary(ctx, pool, profileFor(up), http.MethodPost, url, body, func(r *http.Request) { h.SetupHeaders(r, up) })
}

// HandleStream implements Handler: scans "data: " lines and forwards each
// payload to sink without parsing it (malformed JSON is skipped later, by
// the translating caller), and stops at the literal "data: [DONE]"
// sentinel, per §4.4.
func (h OpenAIHandler) HandleStream(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte, sink Sink) *gwerrors.Error {
	url := h.RequestURL(endpointFor(up), route, true)
	return doStream(ctx, pool, profileFor(up), http.MethodPost, url, body, func(r *http.Request) { h.SetupHeaders(r, up) },
		func(r io.Reader) *gwerrors.Error {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				if ctx.Err() != nil {
					return gwerrors.New(gwerrors.KindUpstreamTimeout, "request cancelled")
				}
				line := scanner.Text()
				if !strings.HasPrefix(line, "data:") {
					continue
				}
				payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if payload == "" {
					continue
				}
				if payload == "[DONE]" {
					_ = sink.Write(StreamFrame{Done: true})
					return nil
				}
				// Forward the raw frame as-is; callers translating across
				// formats re-decode via translate.DecodeSSEData and skip
				// malformed frames instead of aborting the stream.
				if err := sink.Write(StreamFrame{Raw: append([]byte("data: "), append([]byte(payload), '\n', '\n')...)}); err != nil {
					return gwerrors.New(gwerrors.KindInternalError, "failed writing to client")
				}
			}
			if err := scanner.Err(); err != nil {
				return gwerrors.New(gwerrors.KindUpstreamTimeout, "stream read failed: "+err.Error())
			}
			return nil
		})
}

func endpointFor(up gwconfig.Upstream) string {
	if len(up.Endpoints) == 0 {
		return ""
	}
	return up.Endpoints[0]
}
