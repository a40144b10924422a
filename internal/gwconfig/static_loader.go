package gwconfig

import (
	"encoding/json"
	"os"

	"github.com/Laisky/errors/v2"
)

// staticDoc is the on-disk JSON shape for a self-hosted, file-backed
// snapshot — the simplest of the two Store implementations, grounded on
// kristiansnts-apipod-smart-proxy's StaticConfigLoader (a self-host JSON
// config read straight off disk, no remote fetch).
type staticDoc struct {
	Upstreams []struct {
		ID        string   `json:"id"`
		APIStyle  string   `json:"api_style"`
		Endpoints []string `json:"endpoints"`
		APIKey    string   `json:"api_key"`
		ProxyURL  string   `json:"proxy_url,omitempty"`
	} `json:"upstreams"`
	Models []struct {
		ID                   string `json:"id"`
		DisplayName          string `json:"display_name"`
		PromptPricePer1K     float64 `json:"prompt_price_per_1k"`
		CompletionPricePer1K float64 `json:"completion_price_per_1k"`
		Priority             int    `json:"priority"`
		IsTemporary          bool   `json:"is_temporary"`
		Routes               []struct {
			Provider        string `json:"provider"`
			UpstreamID      string `json:"upstream_id"`
			UpstreamModelID string `json:"upstream_model_id,omitempty"`
			Priority        *int   `json:"priority,omitempty"`
		} `json:"routes"`
	} `json:"models"`
}

// NewStaticFileStore builds a Store whose Reload re-reads a JSON file from
// disk on every call. Suited for a single-operator, config-as-a-file
// deployment.
func NewStaticFileStore(path string) Store {
	return NewStore(func() (*Snapshot, error) {
		return loadStaticFile(path)
	})
}

func loadStaticFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %q", path)
	}

	var doc staticDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse config file %q", path)
	}

	snapshot := &Snapshot{
		Upstreams: make(map[string]Upstream, len(doc.Upstreams)),
		Models:    make(map[string][]Model, len(doc.Models)),
	}

	for _, u := range doc.Upstreams {
		snapshot.Upstreams[u.ID] = Upstream{
			ID:        u.ID,
			APIStyle:  APIStyle(u.APIStyle),
			Endpoints: u.Endpoints,
			APIKey:    u.APIKey,
			ProxyURL:  u.ProxyURL,
		}
	}

	for _, m := range doc.Models {
		routes := make([]Route, 0, len(m.Routes))
		for _, r := range m.Routes {
			routes = append(routes, Route{
				Provider:        APIStyle(r.Provider),
				UpstreamID:      r.UpstreamID,
				UpstreamModelID: r.UpstreamModelID,
				Priority:        r.Priority,
			})
		}
		model := Model{
			ID:                   m.ID,
			DisplayName:          m.DisplayName,
			PromptPricePer1K:     m.PromptPricePer1K,
			CompletionPricePer1K: m.CompletionPricePer1K,
			Priority:             m.Priority,
			IsTemporary:          m.IsTemporary,
			Routes:               routes,
		}
		snapshot.Models[m.ID] = append(snapshot.Models[m.ID], model)
	}

	return snapshot, nil
}
