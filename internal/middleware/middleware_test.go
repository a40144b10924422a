package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/logger"
	"github.com/laisky/relay-gateway/internal/relaycontext"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	gwconfig.ForwardToken = "secret"
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	Auth()(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsMatchingBearerToken(t *testing.T) {
	gwconfig.ForwardToken = "secret"
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	c.Request.Header.Set("Authorization", "Bearer secret")

	called := false
	c.Set("__test_marker__", true)
	Auth()(c)
	if v, ok := c.Get("__test_marker__"); ok && v == true {
		called = true
	}

	assert.True(t, called)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestAuthExemptsTrustedChannel(t *testing.T) {
	gwconfig.ForwardToken = "secret"
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	c.Request.Header.Set("X-CCR-Channel", "dashboard")

	Auth()(c)

	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
	mode, _ := c.Get("auth_mode")
	assert.Equal(t, "trusted-channel", mode)
}

func TestAuthBypassesWhenForwardTokenUnset(t *testing.T) {
	gwconfig.ForwardToken = ""
	defer func() { gwconfig.ForwardToken = "secret" }()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	Auth()(c)

	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
	mode, _ := c.Get("auth_mode")
	assert.Equal(t, "disabled", mode)
}

func TestRouteRejectsUnknownModel(t *testing.T) {
	store := gwconfig.NewStore(func() (*gwconfig.Snapshot, error) {
		return &gwconfig.Snapshot{Upstreams: map[string]gwconfig.Upstream{}, Models: map[string][]gwconfig.Model{}}, nil
	})
	store.Reload()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"model":"does-not-exist","messages":[]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	gmw.SetLogger(c, logger.Logger)

	Route(store, "openai")(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteSelectsEligibleUpstream(t *testing.T) {
	priority := 10
	snapshot := &gwconfig.Snapshot{
		Upstreams: map[string]gwconfig.Upstream{
			"up1": {ID: "up1", Endpoints: []string{"https://up1"}},
		},
		Models: map[string][]gwconfig.Model{
			"gpt-4o": {{ID: "gpt-4o", Routes: []gwconfig.Route{{UpstreamID: "up1", Priority: &priority}}}},
		},
	}
	store := gwconfig.NewStore(func() (*gwconfig.Snapshot, error) { return snapshot, nil })
	store.Reload()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"model":"gpt-4o","messages":[]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	gmw.SetLogger(c, logger.Logger)

	Route(store, "openai")(c)

	require.NotEqual(t, http.StatusNotFound, w.Code)
	require.NotEqual(t, http.StatusInternalServerError, w.Code)
}

func TestRouteExtractsGeminiModelFromURLPath(t *testing.T) {
	priority := 10
	snapshot := &gwconfig.Snapshot{
		Upstreams: map[string]gwconfig.Upstream{
			"up1": {ID: "up1", Endpoints: []string{"https://up1"}},
		},
		Models: map[string][]gwconfig.Model{
			"gemini-1.5-pro": {{ID: "gemini-1.5-pro", Routes: []gwconfig.Route{{UpstreamID: "up1", Priority: &priority}}}},
		},
	}
	store := gwconfig.NewStore(func() (*gwconfig.Snapshot, error) { return snapshot, nil })
	store.Reload()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost,
		"/gemini/v1beta/models/gemini-1.5-pro:streamGenerateContent", strings.NewReader(`{}`))
	c.Params = gin.Params{{Key: "model", Value: "gemini-1.5-pro:streamGenerateContent"}}
	gmw.SetLogger(c, logger.Logger)

	Route(store, "gemini")(c)

	require.NotEqual(t, http.StatusNotFound, w.Code)
	model, _ := c.Get("request_model")
	assert.Equal(t, "gemini-1.5-pro", model)
	fc, ok := relaycontext.FromGinContext(c)
	require.True(t, ok)
	assert.True(t, fc.IsStreaming)
}

func TestRouteRejectsUnknownGeminiModelFromURLPath(t *testing.T) {
	store := gwconfig.NewStore(func() (*gwconfig.Snapshot, error) {
		return &gwconfig.Snapshot{Upstreams: map[string]gwconfig.Upstream{}, Models: map[string][]gwconfig.Model{}}, nil
	})
	store.Reload()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost,
		"/gemini/v1beta/models/no-such-model:generateContent", strings.NewReader(`{}`))
	c.Params = gin.Params{{Key: "model", Value: "no-such-model:generateContent"}}
	gmw.SetLogger(c, logger.Logger)

	Route(store, "gemini")(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
