package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/gwconfig"
)

// setupSQLiteConfigStore opens an in-memory sqlite-backed ConfigStore per
// test, mirroring the teacher's setupSQLiteCostDB fixture shape (a fresh
// backing store per test rather than a shared package-level DB). Each test
// gets its own named in-memory database so parallel or sequential tests
// never see each other's rows through sqlite's shared-cache mode.
func setupSQLiteConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	cs, err := NewConfigStore(dsn)
	require.NoError(t, err)
	return cs
}

func TestConfigStoreUpsertAndLoadUpstream(t *testing.T) {
	cs := setupSQLiteConfigStore(t)

	up := gwconfig.Upstream{
		ID:             "bedrock-claude",
		APIStyle:       gwconfig.APIStyleAnthropic,
		Endpoints:      []string{"https://bedrock-runtime.us-east-1.amazonaws.com"},
		APIKey:         "",
		ProxyURL:       "",
		AuthVariant:    "bedrock",
		BedrockRegion:  "us-east-1",
		BedrockModelID: "anthropic.claude-3-sonnet-20240229-v1:0",
	}
	require.NoError(t, cs.UpsertUpstream(up))

	snapshot, err := cs.Loader()()
	require.NoError(t, err)

	loaded, ok := snapshot.Upstreams["bedrock-claude"]
	require.True(t, ok)
	require.Equal(t, up.AuthVariant, loaded.AuthVariant)
	require.Equal(t, up.BedrockRegion, loaded.BedrockRegion)
	require.Equal(t, up.BedrockModelID, loaded.BedrockModelID)
	require.Equal(t, up.Endpoints, loaded.Endpoints)
}

func TestConfigStoreUpsertVertexUpstream(t *testing.T) {
	cs := setupSQLiteConfigStore(t)

	up := gwconfig.Upstream{
		ID:             "vertex-gemini",
		APIStyle:       gwconfig.APIStyleGemini,
		Endpoints:      []string{"https://us-central1-aiplatform.googleapis.com"},
		AuthVariant:    "vertex",
		VertexProject:  "my-project",
		VertexLocation: "us-central1",
	}
	require.NoError(t, cs.UpsertUpstream(up))

	snapshot, err := cs.Loader()()
	require.NoError(t, err)

	loaded, ok := snapshot.Upstreams["vertex-gemini"]
	require.True(t, ok)
	require.Equal(t, "vertex", loaded.AuthVariant)
	require.Equal(t, "my-project", loaded.VertexProject)
	require.Equal(t, "us-central1", loaded.VertexLocation)
}

func TestConfigStoreUpsertOverwritesExistingRow(t *testing.T) {
	cs := setupSQLiteConfigStore(t)

	require.NoError(t, cs.UpsertUpstream(gwconfig.Upstream{
		ID:        "openai-main",
		APIStyle:  gwconfig.APIStyleOpenAI,
		Endpoints: []string{"https://api.openai.com"},
		APIKey:    "sk-old",
	}))
	require.NoError(t, cs.UpsertUpstream(gwconfig.Upstream{
		ID:        "openai-main",
		APIStyle:  gwconfig.APIStyleOpenAI,
		Endpoints: []string{"https://api.openai.com"},
		APIKey:    "sk-new",
	}))

	snapshot, err := cs.Loader()()
	require.NoError(t, err)

	loaded, ok := snapshot.Upstreams["openai-main"]
	require.True(t, ok)
	require.Equal(t, "sk-new", loaded.APIKey)
}

func TestConfigStoreLoaderEmptyWhenNoRows(t *testing.T) {
	cs := setupSQLiteConfigStore(t)

	snapshot, err := cs.Loader()()
	require.NoError(t, err)
	require.Empty(t, snapshot.Upstreams)
	require.Empty(t, snapshot.Models)
}
