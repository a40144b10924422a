package store

import (
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/laisky/relay-gateway/internal/gwconfig"
)

// upstreamRow and modelRow are the gorm-persisted rows backing a config
// Snapshot. A full snapshot is small (tens of upstreams/models at most), so
// reload simply re-reads both tables in full rather than diffing.
type upstreamRow struct {
	ID             string `gorm:"primaryKey"`
	APIStyle       string
	EndpointsJSON  string
	APIKey         string
	ProxyURL       string
	AuthVariant    string
	BedrockRegion  string
	BedrockModelID string
	VertexProject  string
	VertexLocation string
	UpdatedAt      time.Time
}

func (upstreamRow) TableName() string { return "gateway_upstreams" }

type modelRow struct {
	ID                   string `gorm:"primaryKey"`
	DisplayName          string
	PromptPricePer1K     float64
	CompletionPricePer1K float64
	Priority             int
	IsTemporary          bool
	RoutesJSON           string
	UpdatedAt            time.Time
}

func (modelRow) TableName() string { return "gateway_models" }

type routeDoc struct {
	Provider        string `json:"provider"`
	UpstreamID      string `json:"upstream_id"`
	UpstreamModelID string `json:"upstream_model_id,omitempty"`
	Priority        *int   `json:"priority,omitempty"`
}

// ConfigStore is the gorm-backed source behind a gwconfig.Store: its Loader
// is passed to gwconfig.NewStore, giving deployments a snapshot that
// survives a process restart without a separate config service. It does not
// implement gwconfig.Store itself.
type ConfigStore struct {
	db *gorm.DB
}

// NewConfigStore opens (and migrates) a gorm-backed config store at dsn.
func NewConfigStore(dsn string) (*ConfigStore, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&upstreamRow{}, &modelRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate config store")
	}
	return &ConfigStore{db: db}, nil
}

// Loader returns a loader function suitable for gwconfig.NewStore.
func (c *ConfigStore) Loader() func() (*gwconfig.Snapshot, error) {
	return func() (*gwconfig.Snapshot, error) {
		var upstreams []upstreamRow
		if err := c.db.Find(&upstreams).Error; err != nil {
			return nil, errors.Wrap(err, "load upstreams")
		}
		var models []modelRow
		if err := c.db.Find(&models).Error; err != nil {
			return nil, errors.Wrap(err, "load models")
		}

		snapshot := &gwconfig.Snapshot{
			Upstreams: make(map[string]gwconfig.Upstream, len(upstreams)),
			Models:    make(map[string][]gwconfig.Model, len(models)),
		}

		for _, u := range upstreams {
			var endpoints []string
			_ = json.Unmarshal([]byte(u.EndpointsJSON), &endpoints)
			snapshot.Upstreams[u.ID] = gwconfig.Upstream{
				ID:             u.ID,
				APIStyle:       gwconfig.APIStyle(u.APIStyle),
				Endpoints:      endpoints,
				APIKey:         u.APIKey,
				ProxyURL:       u.ProxyURL,
				AuthVariant:    u.AuthVariant,
				BedrockRegion:  u.BedrockRegion,
				BedrockModelID: u.BedrockModelID,
				VertexProject:  u.VertexProject,
				VertexLocation: u.VertexLocation,
			}
		}

		for _, m := range models {
			var routeDocs []routeDoc
			_ = json.Unmarshal([]byte(m.RoutesJSON), &routeDocs)
			routes := make([]gwconfig.Route, 0, len(routeDocs))
			for _, r := range routeDocs {
				routes = append(routes, gwconfig.Route{
					Provider:        gwconfig.APIStyle(r.Provider),
					UpstreamID:      r.UpstreamID,
					UpstreamModelID: r.UpstreamModelID,
					Priority:        r.Priority,
				})
			}
			model := gwconfig.Model{
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
}

// UpsertUpstream writes (or replaces) one upstream row. Neither binary in
// cmd/ calls it (cmd/gatewayctl only reads); the core gateway process only
// ever reads through Loader.
func (c *ConfigStore) UpsertUpstream(u gwconfig.Upstream) error {
	endpoints, err := json.Marshal(u.Endpoints)
	if err != nil {
		return errors.Wrap(err, "marshal endpoints")
	}
	row := upstreamRow{
		ID:             u.ID,
		APIStyle:       string(u.APIStyle),
		EndpointsJSON:  string(endpoints),
		APIKey:         u.APIKey,
		ProxyURL:       u.ProxyURL,
		AuthVariant:    u.AuthVariant,
		BedrockRegion:  u.BedrockRegion,
		BedrockModelID: u.BedrockModelID,
		VertexProject:  u.VertexProject,
		VertexLocation: u.VertexLocation,
		UpdatedAt:      time.Now(),
	}
	return c.db.Save(&row).Error
}
