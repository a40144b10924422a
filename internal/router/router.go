// Package router implements the Router/Fallback (C5): given a resolved
// Model, yields the next (Route, Upstream) candidate to try, ordered by
// descending route-priority with absent priorities shuffled uniformly
// within their tier, skipping already-tried/ineligible upstreams, per §4.2.
// Grounded on middleware/distributor.go's selectChannel
// exclusion-accumulating retry loop in the teacher, adapted from "channel
// selection across the whole snapshot" to "route selection within one
// model's route list".
package router

import (
	"math/rand"
	"sort"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
)

// Candidate pairs a Route with its resolved Upstream.
type Candidate struct {
	Route    gwconfig.Route
	Upstream gwconfig.Upstream
}

// Plan is a precomputed, ordered, request-scoped attempt order for one
// model. Building it once per request (rather than re-deriving on every
// retry) gives the "same order on retry for determinism within the
// request" tie-break rule from §4.2 for free.
type Plan struct {
	candidates []Candidate
}

// BuildPlan orders a model's routes by descending priority; routes with no
// priority sort last and are shuffled uniformly among themselves. Routes
// whose upstream is missing from the snapshot or has zero endpoints are
// dropped up front, per §4.2 "Skip routes whose upstream is not in the
// snapshot or has zero endpoints."
func BuildPlan(snapshot *gwconfig.Snapshot, model gwconfig.Model) Plan {
	var prioritized []gwconfig.Route
	var unprioritized []gwconfig.Route

	for _, route := range model.Routes {
		up, ok := snapshot.ResolveUpstream(route.UpstreamID)
		if !ok || !up.Eligible() {
			continue
		}
		if route.Priority != nil {
			prioritized = append(prioritized, route)
		} else {
			unprioritized = append(unprioritized, route)
		}
	}

	sort.SliceStable(prioritized, func(i, j int) bool {
		return *prioritized[i].Priority > *prioritized[j].Priority
	})
	rand.Shuffle(len(unprioritized), func(i, j int) {
		unprioritized[i], unprioritized[j] = unprioritized[j], unprioritized[i]
	})

	candidates := make([]Candidate, 0, len(prioritized)+len(unprioritized))
	for _, r := range append(prioritized, unprioritized...) {
		up, _ := snapshot.ResolveUpstream(r.UpstreamID)
		candidates = append(candidates, Candidate{Route: r, Upstream: up})
	}

	return Plan{candidates: candidates}
}

// Empty reports whether the plan has no eligible candidates at all.
func (p Plan) Empty() bool {
	return len(p.candidates) == 0
}

// Next returns the first candidate not present in excluded. ok is false
// when every candidate has been excluded (exhaustion).
func (p Plan) Next(excluded map[string]bool) (Candidate, bool) {
	for _, cand := range p.candidates {
		if excluded[cand.Upstream.ID] {
			continue
		}
		return cand, true
	}
	return Candidate{}, false
}

// Exhausted builds the terminal error for a fully-exhausted plan, per
// §4.2: "surface the last non-retryable error or UpstreamExhausted if all
// were retryable." lastErr may be nil if no attempt was made yet.
func Exhausted(lastErr *gwerrors.Error) *gwerrors.Error {
	if lastErr != nil && !lastErr.Retryable {
		return lastErr
	}
	return gwerrors.New(gwerrors.KindUpstreamExhausted, "all routes failed")
}
