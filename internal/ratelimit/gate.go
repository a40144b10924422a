// Package ratelimit implements the Rate & Budget Gate (C3): a sliding-window
// RPM counter, global and per-session concurrency caps, and rolling
// daily/weekly/monthly USD budget ceilings, admitted atomically per §4.6.
// Grounded on relay/streaming/tracker.go's short-held-mutex accumulate
// pattern and kristiansnts-apipod-smart-proxy's internal/proxy/rate_limiter.go
// (per-key sliding window + daily quota) as a secondary style reference for
// the sliding-window implementation.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/laisky/relay-gateway/internal/gwerrors"
)

// Gate is the process-wide Rate & Budget Gate. It is safe for concurrent
// use.
type Gate struct {
	mu sync.Mutex

	store Store // optional; nil keeps budget totals process-local only

	rpm            int
	maxConcurrent  int
	maxPerSession  int
	budgetDaily    float64
	budgetWeekly   float64
	budgetMonthly  float64

	requestStarts []time.Time // sliding 60s window, oldest first

	globalInFlight  int
	sessionInFlight map[string]int

	dayTotal   float64
	dayReset   time.Time
	weekTotal  float64
	weekReset  time.Time
	monthTotal float64
	monthReset time.Time
}

// New constructs a Gate with the given ceilings. A zero ceiling disables
// that check (RPM/concurrency use "<=0 means unlimited"; budgets use
// "<=0 means unlimited", per §4.6's "When any ceiling is exceeded").
func New(rpm, maxConcurrent, maxConcurrentPerSession int, budgetDaily, budgetWeekly, budgetMonthly float64) *Gate {
	now := time.Now()
	return &Gate{
		rpm:             rpm,
		maxConcurrent:   maxConcurrent,
		maxPerSession:   maxConcurrentPerSession,
		budgetDaily:     budgetDaily,
		budgetWeekly:    budgetWeekly,
		budgetMonthly:   budgetMonthly,
		sessionInFlight: make(map[string]int),
		dayReset:        nextLocalMidnight(now),
		weekReset:       nextMondayMidnight(now),
		monthReset:      nextMonthStart(now),
	}
}

// WithStore attaches a shared Store (e.g. RedisStore) that mirrors this
// Gate's budget spend for visibility across replicas. The process-local
// totals remain authoritative for admission decisions; the store is a
// best-effort side channel, never a blocking dependency of Admit.
func (g *Gate) WithStore(store Store) *Gate {
	g.store = store
	return g
}

// Admission is returned by Admit and must be released exactly once via
// Release, regardless of success, error, panic, or client cancellation —
// the invariant from §8: "the in-flight counters return to their
// pre-admission values on exit, across success, error, panic, and
// client-cancel paths."
type Admission struct {
	gate      *Gate
	sessionID string
	released  bool
}

// Release decrements the counters this Admission incremented. Safe to call
// more than once; only the first call has effect.
func (a *Admission) Release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	a.gate.release(a.sessionID)
}

// Admit evaluates all three gates atomically: either every check passes and
// counters are incremented together, or none have side effects, per §4.6:
// "either all three gates pass and the request proceeds with its
// decrements deferred to request end, or none have side effects."
func (g *Gate) Admit(sessionID string) (*Admission, *gwerrors.Error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.rollBudgetWindowsLocked(now)
	g.pruneRequestStartsLocked(now)

	if g.rpm > 0 && len(g.requestStarts) >= g.rpm {
		retryAfter := g.requestStarts[0].Add(time.Minute).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		err := gwerrors.New(gwerrors.KindTooManyRequests, "rate limit exceeded")
		err.Param = retryAfter.Round(time.Second).String()
		return nil, err
	}

	if g.maxConcurrent > 0 && g.globalInFlight >= g.maxConcurrent {
		return nil, gwerrors.New(gwerrors.KindTooManyRequests, "too many concurrent requests")
	}

	if sessionID != "" && g.maxPerSession > 0 && g.sessionInFlight[sessionID] >= g.maxPerSession {
		return nil, gwerrors.New(gwerrors.KindTooManyRequests, "too many concurrent requests for session")
	}

	if g.budgetDaily > 0 && g.dayTotal >= g.budgetDaily {
		return nil, budgetExceeded("daily")
	}
	if g.budgetWeekly > 0 && g.weekTotal >= g.budgetWeekly {
		return nil, budgetExceeded("weekly")
	}
	if g.budgetMonthly > 0 && g.monthTotal >= g.budgetMonthly {
		return nil, budgetExceeded("monthly")
	}

	g.requestStarts = append(g.requestStarts, now)
	g.globalInFlight++
	if sessionID != "" {
		g.sessionInFlight[sessionID]++
	}

	return &Admission{gate: g, sessionID: sessionID}, nil
}

func budgetExceeded(window string) *gwerrors.Error {
	err := gwerrors.New(gwerrors.KindBudgetExceeded, "budget exceeded: "+window)
	err.Param = window
	return err
}

func (g *Gate) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.globalInFlight > 0 {
		g.globalInFlight--
	}
	if sessionID != "" && g.sessionInFlight[sessionID] > 0 {
		g.sessionInFlight[sessionID]--
		if g.sessionInFlight[sessionID] == 0 {
			delete(g.sessionInFlight, sessionID)
		}
	}
}

// RecordSpend adds a completed request's USD cost to the rolling budget
// totals, called when a usage record is emitted, per §3's "Rolling USD
// totals... Updated when a usage record is emitted."
func (g *Gate) RecordSpend(usd float64) {
	if usd <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	g.rollBudgetWindowsLocked(now)
	g.dayTotal += usd
	g.weekTotal += usd
	g.monthTotal += usd

	if g.store != nil {
		dayTTL, weekTTL, monthTTL := g.dayReset.Sub(now), g.weekReset.Sub(now), g.monthReset.Sub(now)
		go func() {
			ctx := context.Background()
			_, _ = g.store.AddSpend(ctx, "daily", usd, dayTTL)
			_, _ = g.store.AddSpend(ctx, "weekly", usd, weekTTL)
			_, _ = g.store.AddSpend(ctx, "monthly", usd, monthTTL)
		}()
	}
}

func (g *Gate) pruneRequestStartsLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for ; i < len(g.requestStarts); i++ {
		if g.requestStarts[i].After(cutoff) {
			break
		}
	}
	g.requestStarts = g.requestStarts[i:]
}

func (g *Gate) rollBudgetWindowsLocked(now time.Time) {
	if !now.Before(g.dayReset) {
		g.dayTotal = 0
		g.dayReset = nextLocalMidnight(now)
	}
	if !now.Before(g.weekReset) {
		g.weekTotal = 0
		g.weekReset = nextMondayMidnight(now)
	}
	if !now.Before(g.monthReset) {
		g.monthTotal = 0
		g.monthReset = nextMonthStart(now)
	}
}

func nextLocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

func nextMondayMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	// time.Monday == 1; Sunday == 0. Days until next Monday, at least 1.
	daysUntilMonday := (int(time.Monday) - int(midnight.Weekday()) + 7) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}
	return midnight.AddDate(0, 0, daysUntilMonday)
}

func nextMonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}
