package store

import (
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/laisky/relay-gateway/internal/usage"
)

// usageRow is the persisted shape of a drained usage.Record.
type usageRow struct {
	ID               uint `gorm:"primaryKey;autoIncrement"`
	ModelID          string
	UpstreamID       string
	Channel          string
	Tool             string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Cancelled        bool
	StartedAt        time.Time
	CompletedAt      time.Time
}

func (usageRow) TableName() string { return "gateway_usage_records" }

// UsageStore is a gorm-backed usage.Writer: the default, in-tree
// implementation of the record_usage sink's durable backing. Grounded on
// relay/billing/billing.go's RecordConsumeLog write, simplified to a single
// append-only table since this gateway has no per-user ledger to update.
type UsageStore struct {
	db *gorm.DB
}

// NewUsageStore opens (and migrates) a gorm-backed usage store at dsn.
func NewUsageStore(dsn string) (*UsageStore, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&usageRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate usage store")
	}
	return &UsageStore{db: db}, nil
}

// WriteUsage implements usage.Writer.
func (s *UsageStore) WriteUsage(rec usage.Record) error {
	row := usageRow{
		ModelID:          rec.ModelID,
		UpstreamID:       rec.UpstreamID,
		Channel:          rec.Channel,
		Tool:             rec.Tool,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		CostUSD:          rec.CostUSD,
		Cancelled:        rec.Cancelled,
		StartedAt:        rec.StartedAt,
		CompletedAt:      rec.CompletedAt,
	}
	return s.db.Create(&row).Error
}
