// Package usage implements the gateway's Usage Accounting (C8): a per-request
// token/price accumulator (UsageTracker, per §3) and the usage sink that
// records completed requests. Grounded on relay/streaming/tracker.go's
// QuotaTracker (the mutex-guarded accumulate-then-flush shape) and
// relay/quota/quota.go's price computation, narrowed to the flat
// prompt/completion price-per-1k-tokens model spec.md's data model defines
// (no tiered/cached pricing — that's a one-api-specific richness this
// gateway's Model type doesn't carry).
package usage

import (
	"sync"
	"time"
)

// Record is what gets drained into the usage sink at request completion,
// per §3's "UsageTracker... at request completion it is drained once into
// the usage sink and then discarded."
type Record struct {
	ModelID          string
	UpstreamID       string
	Channel          string
	Tool             string
	PromptTokens     int
	CompletionTokens int
	StartedAt        time.Time
	CompletedAt      time.Time
	Cancelled        bool
	CostUSD          float64
}

// Tracker is the shared mutable accumulator for one request, per §3's
// UsageTracker. Readers/writers coordinate under a short-held mutex, same
// discipline as QuotaTracker in the teacher.
type Tracker struct {
	mu sync.Mutex

	modelID    string
	upstreamID string
	channel    string
	tool       string
	startedAt  time.Time

	promptTokens     int
	completionTokens int
	authoritative    bool // true once an upstream-reported usage block has been applied (§4.5.3)
	drained          bool
}

// NewTracker constructs a Tracker for one request.
func NewTracker(modelID, upstreamID, channel, tool string) *Tracker {
	return &Tracker{
		modelID:    modelID,
		upstreamID: upstreamID,
		channel:    channel,
		tool:       tool,
		startedAt:  time.Now(),
	}
}

// AddCompletionTokens adds heuristic completion tokens observed from a
// streaming delta. Calls after an authoritative usage block has been
// applied are ignored, since the authoritative value always wins per
// §4.5.3.
func (t *Tracker) AddCompletionTokens(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.authoritative {
		return
	}
	t.completionTokens += n
}

// SetPromptTokens records the prompt token count, typically known up front
// from the request payload or the upstream's non-streaming usage block.
func (t *Tracker) SetPromptTokens(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.promptTokens = n
	}
}

// ApplyAuthoritative overrides the accumulated estimate with an
// upstream-reported usage block, per §4.5.3: "the authoritative value
// replaces the estimate in the usage record emitted to the sink."
func (t *Tracker) ApplyAuthoritative(promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if promptTokens > 0 {
		t.promptTokens = promptTokens
	}
	t.completionTokens = completionTokens
	t.authoritative = true
}

// Snapshot returns the current token counts without draining.
func (t *Tracker) Snapshot() (prompt, completion int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promptTokens, t.completionTokens
}

// Drain finalizes the tracker into a Record built from the current counts,
// with Cancelled set as passed, and marks the tracker drained (see Drained).
// Every call builds a fresh Record; the tracker does not stop a second
// Drain, so the "drained once" invariant in §3 rests on callers recording
// only one Record per request.
func (t *Tracker) Drain(cancelled bool) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := Record{
		ModelID:          t.modelID,
		UpstreamID:       t.upstreamID,
		Channel:          t.channel,
		Tool:             t.tool,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		StartedAt:        t.startedAt,
		CompletedAt:      time.Now(),
		Cancelled:        cancelled,
	}
	t.drained = true
	return rec
}

// Drained reports whether Drain has already been called, so callers on the
// cancellation path can avoid double-recording against the normal
// completion path.
func (t *Tracker) Drained() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drained
}

// EstimateTokens implements the pre-authoritative token estimate from
// §4.4. It prefers a tiktoken BPE count when the encoder loaded
// successfully at startup, otherwise falls back to the "≈ 4 bytes per
// token, floor 1" heuristic. Either way this remains a best-effort
// estimate, not an accurate tokenization — spec.md's non-goals explicitly
// exclude exact cross-provider token counting, and ApplyAuthoritative
// always overrides this the moment the upstream reports real usage.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	if n, ok := estimateTokensBPE(text); ok {
		return n
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
