package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
)

type recordingSink struct {
	frames []StreamFrame
}

func (s *recordingSink) Write(f StreamFrame) error {
	s.frames = append(s.frames, f)
	return nil
}

func newPool() *upstreamclient.Pool {
	return upstreamclient.NewPool(upstreamclient.RetryPolicy{MaxAttempts: 1, InitialMs: 1, MaxMs: 1})
}

func TestOpenAIHandlerSetsBearerAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	up := gwconfig.Upstream{ID: "u1", Endpoints: []string{server.URL}, APIKey: "sk-test"}
	body, err := OpenAIHandler{}.HandleUnary(context.Background(), newPool(), up, gwconfig.Route{}, []byte(`{}`))
	require.Nil(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Contains(t, string(body), "hi")
}

func TestAnthropicHandlerSetsAPIKeyAndVersion(t *testing.T) {
	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Write([]byte(`{"id":"1","type":"message","content":[{"type":"text","text":"hi"}]}`))
	}))
	defer server.Close()

	up := gwconfig.Upstream{ID: "u1", Endpoints: []string{server.URL}, APIKey: "anthropic-key"}
	_, err := AnthropicHandler{}.HandleUnary(context.Background(), newPool(), up, gwconfig.Route{}, []byte(`{}`))
	require.Nil(t, err)
	assert.Equal(t, "anthropic-key", gotKey)
	assert.Equal(t, "2023-06-01", gotVersion)
}

func TestGeminiHandlerBuildsStreamURLWithMethodSuffix(t *testing.T) {
	url := GeminiHandler{}.RequestURL("https://generativelanguage.googleapis.com", gwconfig.Route{UpstreamModelID: "gemini-1.5-pro"}, true)
	assert.Contains(t, url, ":streamGenerateContent")
	assert.Contains(t, url, "alt=sse")
}

func TestOpenAIHandlerStreamStopsAtDoneSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"id\":\"1\"}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	up := gwconfig.Upstream{ID: "u1", Endpoints: []string{server.URL}, APIKey: "sk-test"}
	sink := &recordingSink{}
	gwErr := OpenAIHandler{}.HandleStream(context.Background(), newPool(), up, gwconfig.Route{}, []byte(`{}`), sink)
	require.Nil(t, gwErr)
	require.Len(t, sink.frames, 2)
	assert.True(t, sink.frames[1].Done)
}

func TestAnthropicHandlerStreamStopsAtMessageStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: content_block_delta\ndata: {\"type\":\"content_block_delta\"}\n\n"))
		w.Write([]byte("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"))
	}))
	defer server.Close()

	up := gwconfig.Upstream{ID: "u1", Endpoints: []string{server.URL}, APIKey: "anthropic-key"}
	sink := &recordingSink{}
	gwErr := AnthropicHandler{}.HandleStream(context.Background(), newPool(), up, gwconfig.Route{}, []byte(`{}`), sink)
	require.Nil(t, gwErr)
	require.Len(t, sink.frames, 3)
	assert.True(t, sink.frames[2].Done)
}

func TestForStyleSelectsHandler(t *testing.T) {
	assert.IsType(t, OpenAIHandler{}, ForStyle(gwconfig.APIStyleOpenAI))
	assert.IsType(t, AnthropicHandler{}, ForStyle(gwconfig.APIStyleAnthropic))
	assert.IsType(t, GeminiHandler{}, ForStyle(gwconfig.APIStyleGemini))
}
