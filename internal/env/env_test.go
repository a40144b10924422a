package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntFallback(t *testing.T) {
	t.Setenv("GW_TEST_INT", "42")
	assert.Equal(t, 42, Int("GW_TEST_INT", 7))
	assert.Equal(t, 7, Int("GW_TEST_INT_MISSING", 7))
	t.Setenv("GW_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, Int("GW_TEST_INT_BAD", 7))
}

func TestBoolForms(t *testing.T) {
	t.Setenv("GW_TEST_BOOL", "yes")
	assert.True(t, Bool("GW_TEST_BOOL", false))
	t.Setenv("GW_TEST_BOOL", "no")
	assert.False(t, Bool("GW_TEST_BOOL", true))
	t.Setenv("GW_TEST_BOOL", "true")
	assert.True(t, Bool("GW_TEST_BOOL", false))
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	t.Setenv("GW_TEST_DUR", "30")
	assert.Equal(t, 30*time.Second, Duration("GW_TEST_DUR", time.Minute))
	t.Setenv("GW_TEST_DUR", "1m30s")
	assert.Equal(t, 90*time.Second, Duration("GW_TEST_DUR", time.Minute))
}

func TestFloat64(t *testing.T) {
	t.Setenv("GW_TEST_FLOAT", "3.14")
	assert.InDelta(t, 3.14, Float64("GW_TEST_FLOAT", 0), 1e-9)
	assert.InDelta(t, 1.5, Float64("GW_TEST_FLOAT_MISSING", 1.5), 1e-9)
}
