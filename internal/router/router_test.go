package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
)

func intp(v int) *int { return &v }

func TestBuildPlanOrdersByPriorityAndSkipsIneligible(t *testing.T) {
	snapshot := &gwconfig.Snapshot{
		Upstreams: map[string]gwconfig.Upstream{
			"up_bad":   {ID: "up_bad", Endpoints: []string{"https://bad"}},
			"up_good":  {ID: "up_good", Endpoints: []string{"https://good"}},
			"up_empty": {ID: "up_empty"}, // no endpoints: ineligible
		},
	}
	model := gwconfig.Model{
		ID: "m1",
		Routes: []gwconfig.Route{
			{UpstreamID: "up_bad", Priority: intp(10)},
			{UpstreamID: "up_good", Priority: intp(5)},
			{UpstreamID: "up_empty", Priority: intp(100)},
			{UpstreamID: "nonexistent", Priority: intp(50)},
		},
	}

	plan := BuildPlan(snapshot, model)
	require.False(t, plan.Empty())

	cand, ok := plan.Next(map[string]bool{})
	require.True(t, ok)
	assert.Equal(t, "up_bad", cand.Upstream.ID)

	cand2, ok2 := plan.Next(map[string]bool{"up_bad": true})
	require.True(t, ok2)
	assert.Equal(t, "up_good", cand2.Upstream.ID)

	_, ok3 := plan.Next(map[string]bool{"up_bad": true, "up_good": true})
	assert.False(t, ok3)
}

func TestExhaustedPrefersNonRetryableError(t *testing.T) {
	retryable := gwerrors.New(gwerrors.KindUpstreamTimeout, "timed out")
	nonRetryable := gwerrors.New(gwerrors.KindInvalidRequest, "bad request")

	assert.Same(t, nonRetryable, Exhausted(nonRetryable))
	assert.Equal(t, gwerrors.KindUpstreamExhausted, Exhausted(retryable).Kind)
}

