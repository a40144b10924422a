package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/usage"
)

func setupSQLiteUsageStore(t *testing.T) *UsageStore {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	us, err := NewUsageStore(dsn)
	require.NoError(t, err)
	return us
}

func TestUsageStoreWriteUsage(t *testing.T) {
	us := setupSQLiteUsageStore(t)

	rec := usage.Record{
		ModelID:          "gpt-4o",
		UpstreamID:       "openai-main",
		Channel:          "cli",
		Tool:             "chat",
		PromptTokens:     120,
		CompletionTokens: 45,
		StartedAt:        time.Now().Add(-time.Second),
		CompletedAt:      time.Now(),
		CostUSD:          0.0023,
	}
	require.NoError(t, us.WriteUsage(rec))

	var rows []usageRow
	require.NoError(t, us.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, rec.ModelID, rows[0].ModelID)
	require.Equal(t, rec.UpstreamID, rows[0].UpstreamID)
	require.Equal(t, rec.PromptTokens, rows[0].PromptTokens)
	require.Equal(t, rec.CompletionTokens, rows[0].CompletionTokens)
	require.InDelta(t, rec.CostUSD, rows[0].CostUSD, 0.000001)
}

func TestUsageStoreWriteUsageCancelled(t *testing.T) {
	us := setupSQLiteUsageStore(t)

	rec := usage.Record{
		ModelID:   "claude-3-opus",
		Cancelled: true,
		StartedAt: time.Now(),
	}
	require.NoError(t, us.WriteUsage(rec))

	var rows []usageRow
	require.NoError(t, us.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Cancelled)
}

func TestUsageStoreAppendsAcrossWrites(t *testing.T) {
	us := setupSQLiteUsageStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, us.WriteUsage(usage.Record{ModelID: "gpt-4o", StartedAt: time.Now()}))
	}

	var count int64
	require.NoError(t, us.db.Model(&usageRow{}).Count(&count).Error)
	require.Equal(t, int64(3), count)
}
