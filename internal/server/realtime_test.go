package server

import "testing"

func TestRealtimeUpstreamURLRewritesSchemeAndPath(t *testing.T) {
	got := realtimeUpstreamURL("https://api.openai.com", "gpt-4o-realtime-preview", "gpt-4o", "")
	want := "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRealtimeUpstreamURLFallsBackToCallerModel(t *testing.T) {
	got := realtimeUpstreamURL("https://api.openai.com", "", "gpt-4o", "")
	want := "wss://api.openai.com/v1/realtime?model=gpt-4o"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRealtimeUpstreamURLPreservesExtraQueryParams(t *testing.T) {
	got := realtimeUpstreamURL("https://api.openai.com", "gpt-4o-realtime-preview", "gpt-4o", "foo=bar")
	want := "wss://api.openai.com/v1/realtime?foo=bar&model=gpt-4o-realtime-preview"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRealtimeUpstreamURLPlainHTTPBecomesWS(t *testing.T) {
	got := realtimeUpstreamURL("http://localhost:8000", "local-model", "local-model", "")
	want := "ws://localhost:8000/v1/realtime?model=local-model"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
