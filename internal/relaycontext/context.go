// Package relaycontext implements the ForwardContext from §3: a per-request,
// build-once value carrying the resolved model/upstream/route, the
// streaming flag, client labels, and a UsageTracker handle. Grounded on
// relay/meta/relay_meta.go's Meta struct and its GetByContext
// cache-in-gin-context / refresh-on-retry pattern.
package relaycontext

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/ctxkey"
	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/router"
	"github.com/laisky/relay-gateway/internal/usage"
)

// Context is the gateway's ForwardContext.
type Context struct {
	Model    gwconfig.Model
	Route    gwconfig.Route
	Upstream gwconfig.Upstream

	// Plan is the full ordered candidate list computed once per request, so
	// retries within the request reuse the same order (§4.2's
	// determinism-within-a-request tie-break rule) instead of re-shuffling.
	Plan router.Plan

	IsStreaming bool
	Channel     string // X-CCR-Channel
	Tool        string // X-CCR-Tool
	SessionID   string // x-ccr-session-id
	AuthMode    string // "token", "trusted-channel", or "disabled"

	ArrivalTime time.Time
	Tracker     *usage.Tracker

	// Excluded accumulates upstream IDs the router has already tried and
	// failed, so a retry within the same request skips them (§4.2).
	Excluded map[string]bool
}

// New builds a fresh Context for one request and caches it on the gin
// context.
func New(c *gin.Context, model gwconfig.Model, route gwconfig.Route, up gwconfig.Upstream, plan router.Plan, isStreaming bool) *Context {
	fc := &Context{
		Model:       model,
		Route:       route,
		Upstream:    up,
		Plan:        plan,
		IsStreaming: isStreaming,
		Channel:     c.GetHeader("X-CCR-Channel"),
		Tool:        c.GetHeader("X-CCR-Tool"),
		SessionID:   c.GetHeader("x-ccr-session-id"),
		AuthMode:    c.GetString(ctxkey.AuthMode),
		ArrivalTime: time.Now(),
		Excluded:    map[string]bool{},
	}
	fc.Tracker = usage.NewTracker(model.ID, up.ID, fc.Channel, fc.Tool)
	c.Set(ctxkey.ForwardContext, fc)
	return fc
}

// FromGinContext retrieves the cached Context, if any.
func FromGinContext(c *gin.Context) (*Context, bool) {
	v, ok := c.Get(ctxkey.ForwardContext)
	if !ok {
		return nil, false
	}
	fc, ok := v.(*Context)
	return fc, ok
}

// RefreshForRetry updates the Route/Upstream fields in place after the
// router advances to a new candidate, mirroring relay_meta.go's
// "Channel changed during retry" refresh: the rest of the ForwardContext
// (model, streaming flag, labels, tracker) stays the same across the retry,
// only the routing destination changes.
func (fc *Context) RefreshForRetry(route gwconfig.Route, up gwconfig.Upstream) {
	if fc == nil {
		return
	}
	fc.Excluded[fc.Upstream.ID] = true
	fc.Route = route
	fc.Upstream = up
}

// Advance moves to the next candidate in Plan not yet excluded, refreshing
// Route/Upstream in place. ok is false once the plan is exhausted.
func (fc *Context) Advance() (ok bool) {
	cand, ok := fc.Plan.Next(fc.Excluded)
	if !ok {
		return false
	}
	fc.RefreshForRetry(cand.Route, cand.Upstream)
	return true
}
