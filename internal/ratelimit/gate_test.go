package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwerrors"
)

func TestConcurrencyCapPerSession(t *testing.T) {
	g := New(0, 0, 2, 0, 0, 0)

	a1, err1 := g.Admit("S")
	require.Nil(t, err1)
	a2, err2 := g.Admit("S")
	require.Nil(t, err2)

	_, err3 := g.Admit("S")
	require.NotNil(t, err3)
	assert.Equal(t, gwerrors.KindTooManyRequests, err3.Kind)

	a1.Release()
	a3, err4 := g.Admit("S")
	require.Nil(t, err4)

	a2.Release()
	a3.Release()
}

func TestBudgetExceeded(t *testing.T) {
	g := New(0, 0, 0, 1.0, 0, 0)
	g.RecordSpend(1.5)

	_, err := g.Admit("")
	require.NotNil(t, err)
	assert.Equal(t, gwerrors.KindBudgetExceeded, err.Kind)
	assert.Equal(t, "daily", err.Param)
}

func TestRPMRejectsOverCeiling(t *testing.T) {
	g := New(1, 0, 0, 0, 0, 0)
	a, err := g.Admit("")
	require.Nil(t, err)
	defer a.Release()

	_, err2 := g.Admit("")
	require.NotNil(t, err2)
	assert.Equal(t, gwerrors.KindTooManyRequests, err2.Kind)
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New(0, 1, 0, 0, 0, 0)
	a, err := g.Admit("")
	require.Nil(t, err)
	a.Release()
	a.Release()

	_, err2 := g.Admit("")
	assert.Nil(t, err2)
}
