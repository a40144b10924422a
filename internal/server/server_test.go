package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/ratelimit"
	"github.com/laisky/relay-gateway/internal/upstreamclient"
	"github.com/laisky/relay-gateway/internal/usage"
)

func testSnapshot(upstreamURL string) *gwconfig.Snapshot {
	return &gwconfig.Snapshot{
		Upstreams: map[string]gwconfig.Upstream{
			"openai-main": {
				ID:        "openai-main",
				APIStyle:  gwconfig.APIStyleOpenAI,
				Endpoints: []string{upstreamURL},
				APIKey:    "sk-test",
			},
		},
		Models: map[string][]gwconfig.Model{
			"gpt-4o": {{
				ID:       "gpt-4o",
				Priority: 50,
				Routes: []gwconfig.Route{
					{Provider: gwconfig.APIStyleOpenAI, UpstreamID: "openai-main"},
				},
			}},
		},
	}
}

type staticStore struct{ snapshot *gwconfig.Snapshot }

func (s staticStore) Current() *gwconfig.Snapshot       { return s.snapshot }
func (s staticStore) Reload() (*gwconfig.Snapshot, error) { return s.snapshot, nil }

func newTestEngine(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()
	original := gwconfig.ForwardToken
	gwconfig.ForwardToken = "test-token"
	t.Cleanup(func() { gwconfig.ForwardToken = original })

	store := staticStore{snapshot: testSnapshot(upstreamURL)}
	gate := ratelimit.New(600, 100, 10, 0, 0, 0)
	pool := upstreamclient.NewPool(upstreamclient.RetryPolicy{MaxAttempts: 1, InitialMs: 1, MaxMs: 1})
	return New(store, gate, pool, usage.NopSink{})
}

func TestForwardOpenAIHappyPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":5,"completion_tokens":2}}`))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hi there")
}

func TestForwardOpenAIRejectsMissingToken(t *testing.T) {
	engine := newTestEngine(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForwardOpenAIRejectsUnknownModel(t *testing.T) {
	engine := newTestEngine(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"no-such-model","messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListModelsReturnsEligibleModels(t *testing.T) {
	engine := newTestEngine(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gpt-4o")
}
