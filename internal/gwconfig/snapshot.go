// Package gwconfig models the gateway's Config Snapshot (C1): an immutable
// view of upstreams, models, and routes, rebuilt atomically on reload. The
// package-level env-var knobs below follow the teacher's common/config
// convention (exported vars with doc comments, parsed once via
// internal/env) rather than a config-file library, since this is the same
// "small number of process knobs" shape the teacher uses for its own
// server-level settings.
package gwconfig

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/laisky/relay-gateway/internal/env"
)

// ListenAddr is the default bind address for the HTTP server, per spec.
var ListenAddr = env.String("LISTEN_ADDR", "127.0.0.1:8787")

// ForwardToken, when non-empty, is the single shared bearer token ingress
// requests must present. Empty disables auth (local/dev use).
var ForwardToken = env.String("FORWARD_TOKEN", "")

// EnableRetryFallback gates whether the router advances through a model's
// route list on retryable failures, or uses only the first route.
var EnableRetryFallback = env.Bool("ENABLE_RETRY_FALLBACK", true)

// RPM is the global requests-per-minute ceiling for the sliding window gate.
var RPM = env.Int("RATE_LIMIT_RPM", 600)

// MaxConcurrent is the global in-flight request ceiling.
var MaxConcurrent = env.Int("MAX_CONCURRENT", 64)

// MaxConcurrentPerSession is the per `x-ccr-session-id` in-flight ceiling.
var MaxConcurrentPerSession = env.Int("MAX_CONCURRENT_PER_SESSION", 4)

// BudgetDailyUSD, BudgetWeeklyUSD, BudgetMonthlyUSD are the rolling USD
// ceilings enforced by the budget gate. Zero disables that ceiling.
var (
	BudgetDailyUSD   = env.Float64("BUDGET_DAILY_USD", 0)
	BudgetWeeklyUSD  = env.Float64("BUDGET_WEEKLY_USD", 0)
	BudgetMonthlyUSD = env.Float64("BUDGET_MONTHLY_USD", 0)
)

// RetryMaxAttempts, RetryInitialMs, RetryMaxMs configure the HTTP client's
// exponential backoff for transient transport failures.
var (
	RetryMaxAttempts = env.Int("RETRY_MAX_ATTEMPTS", 3)
	RetryInitialMs   = env.Int("RETRY_INITIAL_MS", 250)
	RetryMaxMs       = env.Int("RETRY_MAX_MS", 4000)
)

// ConnectTimeoutSec, UnaryTimeoutSec, StreamingTimeoutSec hold the default
// timeout table from §4.7/§5: 10s connect, 120s for unary bodies, 10 minutes
// for a streaming response's overall deadline. ConnectTimeoutSec is applied
// as the dial timeout of every upstream client profile. UnaryTimeoutSec and
// StreamingTimeoutSec are read from the environment but no outbound call
// applies them: unary and streaming upstream calls are bounded only by the
// caller's request context.
var (
	ConnectTimeoutSec   = env.Int("CONNECT_TIMEOUT_SEC", 10)
	UnaryTimeoutSec     = env.Int("UNARY_TIMEOUT_SEC", 120)
	StreamingTimeoutSec = env.Int("STREAMING_TIMEOUT_SEC", 600)
)

// DebugEnabled toggles verbose/debug-level logging.
var DebugEnabled = env.Bool("DEBUG", false)

// APIStyle is the wire format an Upstream or Route speaks.
type APIStyle string

const (
	APIStyleOpenAI    APIStyle = "openai"
	APIStyleAnthropic APIStyle = "anthropic"
	APIStyleGemini    APIStyle = "gemini"
)

// Upstream is a named provider endpoint set, per §3's Upstream definition.
type Upstream struct {
	ID        string
	APIStyle  APIStyle
	Endpoints []string // ordered set of base URLs, all speaking APIStyle
	APIKey    string   // trimmed; never transformed
	ProxyURL  string   // optional proxy override; empty uses the default profile

	// AuthVariant selects a non-default transport/auth path for a provider
	// handler that supports more than one way to reach the same wire
	// format: an Anthropic upstream with AuthVariant "bedrock" is signed
	// and invoked through AWS Bedrock instead of a direct HTTPS call; a
	// Gemini upstream with AuthVariant "vertex" authenticates via a Google
	// service-account OAuth2 token instead of a bare API key. A Coze
	// upstream needs no variant at all: its chat endpoint is already
	// OpenAI-compatible, so it is configured as a plain api_style "openai"
	// upstream. Empty means the provider's default direct-HTTPS path.
	AuthVariant string

	// BedrockRegion/BedrockModelID configure the "bedrock" AuthVariant;
	// VertexProject/VertexLocation configure the "vertex" AuthVariant.
	BedrockRegion   string
	BedrockModelID  string
	VertexProject   string
	VertexLocation  string
}

// Eligible reports whether the upstream has at least one endpoint, per the
// Upstream invariant in §3.
func (u Upstream) Eligible() bool {
	return len(u.Endpoints) > 0
}

// Route is one (provider, upstream, upstream-model) tuple a Model may use.
type Route struct {
	Provider        APIStyle // wire format this route speaks to the client side of translation
	UpstreamID      string
	UpstreamModelID string // defaults to the owning Model's ID if empty
	Priority        *int   // nil sorts last, randomized within that tier
}

// Model is a client-facing model identity with an ordered route list.
type Model struct {
	ID              string
	DisplayName     string
	PromptPricePer1K     float64
	CompletionPricePer1K float64
	Priority        int // 0-100, 100 reserved for system-generated entries
	IsTemporary     bool
	Routes          []Route
}

// Eligible reports whether the model has at least one route, per §3.
func (m Model) Eligible() bool {
	return len(m.Routes) > 0
}

// Snapshot is an immutable view of the gateway's routing configuration. A
// Snapshot is safe to share by reference across concurrently running
// requests; it is never mutated after construction.
type Snapshot struct {
	Upstreams map[string]Upstream
	Models    map[string][]Model // keyed by model ID; more than one entry only when a temporary model shares an id with a durable one

	// autoCache memoizes ResolveAuto's winner for a short TTL: under "auto"
	// routing, every request not naming a model re-sorts the full eligible
	// model list, which is pure overhead between reloads since the snapshot
	// never changes out from under a memoized answer. A zero-value (nil)
	// cache, as built by struct literals outside NewStore, just disables
	// memoization rather than panicking. Grounded on the teacher's
	// in-process TTL cache sitting in front of otherwise-authoritative data
	// (model.CacheGetUserGroup and friends).
	autoCache *gocache.Cache
}

// ResolveUpstream looks up an upstream by id.
func (s *Snapshot) ResolveUpstream(id string) (Upstream, bool) {
	if s == nil {
		return Upstream{}, false
	}
	u, ok := s.Upstreams[id]
	return u, ok
}

// ResolveModel implements the model-lookup rule from §4.1 step 4: exact id
// match, preferring the non-temporary entry when both exist.
func (s *Snapshot) ResolveModel(id string) (Model, bool) {
	if s == nil {
		return Model{}, false
	}
	candidates, ok := s.Models[id]
	if !ok || len(candidates) == 0 {
		return Model{}, false
	}
	var best *Model
	for i := range candidates {
		m := &candidates[i]
		if best == nil || (best.IsTemporary && !m.IsTemporary) {
			best = m
		}
	}
	return *best, true
}

// ResolveAuto implements the "auto" routing rule from §4.1 step 3: the
// highest-priority eligible non-temporary model, ties broken
// lexicographically by id.
func (s *Snapshot) ResolveAuto() (Model, bool) {
	if s == nil {
		return Model{}, false
	}
	if s.autoCache != nil {
		if cached, ok := s.autoCache.Get("auto"); ok {
			m, ok := cached.(Model)
			return m, ok
		}
	}
	m, ok := s.resolveAutoUncached()
	if ok && s.autoCache != nil {
		s.autoCache.Set("auto", m, gocache.DefaultExpiration)
	}
	return m, ok
}

func (s *Snapshot) resolveAutoUncached() (Model, bool) {
	var candidates []Model
	for _, group := range s.Models {
		for _, m := range group {
			if m.IsTemporary || !m.Eligible() {
				continue
			}
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Model{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return strings.Compare(candidates[i].ID, candidates[j].ID) < 0
	})
	return candidates[0], true
}

// ListModels returns the resolved (non-shadowed) model list, for GET
// /v1/models.
func (s *Snapshot) ListModels() []Model {
	if s == nil {
		return nil
	}
	out := make([]Model, 0, len(s.Models))
	for id := range s.Models {
		if m, ok := s.ResolveModel(id); ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Store is the read side of the config sink interface from §6:
// get_snapshot() plus an atomic-replacement watch.
type Store interface {
	Current() *Snapshot
	Reload() (*Snapshot, error)
}

// atomicStore is the default in-memory Store: a loader function invoked on
// Reload, with the last-good snapshot served from an atomic.Pointer so
// Current() never blocks on a reload in progress, grounded on
// kristiansnts-apipod-smart-proxy's RemoteConfigLoader fallback-to-last-good
// behavior.
type atomicStore struct {
	ptr    atomic.Pointer[Snapshot]
	loader func() (*Snapshot, error)
	group  singleflight.Group // coalesces concurrent Reload calls into one loader invocation
}

// NewStore builds a Store around a loader function, seeding it with an
// initial empty snapshot until the first successful Reload.
func NewStore(loader func() (*Snapshot, error)) Store {
	s := &atomicStore{loader: loader}
	s.ptr.Store(&Snapshot{Upstreams: map[string]Upstream{}, Models: map[string][]Model{}})
	return s
}

func (s *atomicStore) Current() *Snapshot {
	return s.ptr.Load()
}

// Reload coalesces concurrent callers (e.g. a periodic reload timer racing
// an operator-triggered reload) into a single in-flight loader call via
// singleflight, so a slow config backend is only hit once regardless of how
// many goroutines call Reload at the same moment.
func (s *atomicStore) Reload() (*Snapshot, error) {
	v, err, _ := s.group.Do("reload", func() (any, error) {
		next, loadErr := s.loader()
		if next != nil {
			next.autoCache = gocache.New(2*time.Second, 4*time.Second)
		}
		return next, loadErr
	})
	if err != nil {
		// Fallback to the last-good snapshot: a failed reload must never
		// leave the gateway without routing data.
		return s.ptr.Load(), err
	}
	next := v.(*Snapshot)
	s.ptr.Store(next)
	return next, nil
}
