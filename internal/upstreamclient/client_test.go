package upstreamclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffFormulaCapsAtMax(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialMs: 100, MaxMs: 300}
	assert.Equal(t, 100*time.Millisecond, policy.backoff(0))
	assert.Equal(t, 200*time.Millisecond, policy.backoff(1))
	assert.Equal(t, 300*time.Millisecond, policy.backoff(2)) // would be 400, capped at 300
	assert.Equal(t, 300*time.Millisecond, policy.backoff(3))
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, isTransient(context.DeadlineExceeded, nil))
	assert.True(t, isTransient(nil, nil))
	assert.True(t, isTransient(nil, &http.Response{StatusCode: 503}))
	assert.True(t, isTransient(nil, &http.Response{StatusCode: 429, ContentLength: 0}))
	assert.False(t, isTransient(nil, &http.Response{StatusCode: 429, ContentLength: 12}))
	assert.False(t, isTransient(nil, &http.Response{StatusCode: 400}))
	assert.False(t, isTransient(nil, &http.Response{StatusCode: 200}))
}

func TestDoRetriesTransientFailureThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	pool := NewPool(RetryPolicy{MaxAttempts: 3, InitialMs: 1, MaxMs: 5})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, doErr := pool.Do(context.Background(), Profile{}, req, nil)
	require.NoError(t, doErr)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestDoReturnsImmediatelyOnNonTransientStatus(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	pool := NewPool(RetryPolicy{MaxAttempts: 5, InitialMs: 1, MaxMs: 5})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, doErr := pool.Do(context.Background(), Profile{}, req, nil)
	require.NoError(t, doErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestDoExhaustsRetriesAndReturnsLastResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pool := NewPool(RetryPolicy{MaxAttempts: 2, InitialMs: 1, MaxMs: 2})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, doErr := pool.Do(context.Background(), Profile{}, req, nil)
	require.Nil(t, doErr)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
