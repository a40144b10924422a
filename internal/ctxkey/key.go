// Package ctxkey centralizes the gin.Context keys the gateway's middleware
// chain sets and later stages read, the same convention as the teacher's
// common/ctxkey package (one constant per key, with a doc comment recording
// who sets it and who reads it).
package ctxkey

const (
	// RequestID is a per-request identifier, set by middleware.RequestID and
	// echoed back on the response header for log correlation.
	RequestID = "request_id"

	// ForwardToken is the caller's gateway-level bearer token, extracted by
	// middleware.Auth from the Authorization (Bearer), x-api-key, or
	// x-ccr-forward-token header. Empty for trusted-channel and disabled
	// auth modes.
	ForwardToken = "forward_token"

	// RequestModel is the model name exactly as the caller sent it. Never
	// mutated; provider-specific mapping happens on a copy inside
	// relaycontext.Context.
	RequestModel = "request_model"

	// SelectedUpstream is reserved for the upstream chosen for the current
	// attempt. No stage sets or reads it; the selected upstream lives in
	// relaycontext.Context.Upstream.
	SelectedUpstream = "selected_upstream"

	// ExcludedUpstreams is reserved for the upstream IDs already tried and
	// failed. No stage sets or reads it; the exclusion set lives in
	// relaycontext.Context.Excluded.
	ExcludedUpstreams = "excluded_upstreams"

	// ForwardContext holds the *relaycontext.Context built for this
	// request, cached across retries within the same gin.Context.
	ForwardContext = "forward_context"

	// StreamingUsageTracker is reserved for the usage tracker of an in-flight
	// streaming response. No stage sets or reads it; the request's
	// *usage.Tracker lives in relaycontext.Context.Tracker.
	StreamingUsageTracker = "streaming_usage_tracker"

	// AuthMode records how the request passed authentication: "token",
	// "trusted-channel", or "disabled" (no forward token configured). Set
	// by middleware.Auth, read when building the ForwardContext.
	AuthMode = "auth_mode"
)
