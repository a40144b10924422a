// Package store provides the default, in-tree implementations of the two
// persistence-facing sink interfaces spec.md treats as external
// collaborators: the config Store's durable backing (gorm-backed, so a
// snapshot survives a restart, fed to gwconfig.NewStore through
// ConfigStore.Loader) and the usage sink's writer (§6). The gateway's core
// never imports database/sql directly; it only depends on the narrow
// gwconfig.Store and usage.Sink interfaces built on top of these. Grounded on
// the teacher's common/config DSN-selection switch (mysql/postgres/sqlite
// picked by a single DSN prefix) and relay/billing's non-fatal-on-failure
// sink-write pattern.
package store

import (
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open opens a gorm.DB for the given DSN, picking a driver the same way the
// teacher's common/config package does: an explicit scheme prefix selects
// mysql/postgres, anything else (including a bare file path) is sqlite.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "open store dsn")
	}
	return db, nil
}
