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

// anthropicAPIVersion is the fixed API version header Anthropic requires
// on every request. Grounded on relay/adaptor/anthropic/constants.go.
const anthropicAPIVersion = "2023-06-01"

// AnthropicHandler talks to Anthropic upstreams: x-api-key auth plus the
// anthropic-version header, POST {endpoint}/v1/messages, SSE streaming
// terminated by a "message_stop" event (no [DONE] sentinel), per §4.3/§6.
type AnthropicHandler struct{}

var _ Handler = AnthropicHandler{}

// RequestURL implements Handler.
func (AnthropicHandler) RequestURL(endpoint string, route gwconfig.Route, streaming bool) string {
	return strings.TrimRight(endpoint, "/") + "/v1/messages"
}

// SetupHeaders implements Handler, per §6: "x-api-key: <api_key>,
// anthropic-version: 2023-06-01".
func (AnthropicHandler) SetupHeaders(req *http.Request, up gwconfig.Upstream) {
	req.Header.Set("x-api-key", up.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

// HandleUnary implements Handler. An Upstream with AuthVariant "bedrock"
// routes through AWS Bedrock's signed InvokeModel call instead of a direct
// HTTPS request, per SPEC_FULL's Bedrock-fronted Anthropic provider note.
func (h AnthropicHandler) HandleUnary(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte) ([]byte, *gwerrors.Error) {
	if up.AuthVariant == "bedrock" {
		return h.handleBedrockUnary(ctx, up, body)
	}
	url := h.RequestURL(endpointFor(up), route, false)
	return doUnary(ctx, pool, profileFor(up), http.MethodPost, url, body, func(r *http.Request) { h.SetupHeaders(r, up) })
}

// HandleStream implements Handler: Anthropic frames each SSE block as an
// explicit "event: <name>" line followed by "data: {json}", and the stream
// ends on a "message_stop" event rather than a [DONE] sentinel.
func (h AnthropicHandler) HandleStream(ctx context.Context, pool *upstreamclient.Pool, up gwconfig.Upstream, route gwconfig.Route, body []byte, sink Sink) *gwerrors.Error {
	if up.AuthVariant == "bedrock" {
		return h.handleBedrockStream(ctx, up, body, sink)
	}
	url := h.RequestURL(endpointFor(up), route, true)
	return doStream(ctx, pool, profileFor(up), http.MethodPost, url, body, func(r *http.Request) { h.SetupHeaders(r, up) },
		func(r io.Reader) *gwerrors.Error {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			var currentEvent string
			for scanner.Scan() {
				if ctx.Err() != nil {
					return gwerrors.New(gwerrors.KindUpstreamTimeout, "request cancelled")
				}
				line := scanner.Text()
				switch {
				case strings.HasPrefix(line, "event:"):
					currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				case strings.HasPrefix(line, "data:"):
					payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
					if payload == "" {
						continue
					}
					frame := "event: " + currentEvent + "\ndata: " + payload + "\n\n"
					if err := sink.Write(StreamFrame{Raw: []byte(frame)}); err != nil {
						return gwerrors.New(gwerrors.KindInternalError, "failed writing to client")
					}
					if currentEvent == "message_stop" {
						_ = sink.Write(StreamFrame{Done: true})
						return nil
					}
				case line == "":
					currentEvent = ""
				}
			}
			if err := scanner.Err(); err != nil {
				return gwerrors.New(gwerrors.KindUpstreamTimeout, "stream read failed: "+err.Error())
			}
			return nil
		})
}
