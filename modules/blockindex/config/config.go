package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/internal/postgres"
	"github.com/gaze-network/ledger-indexer/internal/redis"
)

type Config struct {
	Datasource    string          `mapstructure:"datasource"`     // Datasource to fetch committed blocks from. e.g. `ledger-postgres`
	Database      string          `mapstructure:"database"`       // Store for the index families. e.g. `redis` | `pebble` | `memory`
	StateDatabase string          `mapstructure:"state_database"` // Store for the indexer progress marker. e.g. `postgres` | `memory`
	APIHandlers   []string        `mapstructure:"api_handlers"`   // API handlers to mount. e.g. `http`
	Redis         redis.Config    `mapstructure:"redis"`
	Pebble        PebbleConfig    `mapstructure:"pebble"`
	Postgres      postgres.Config `mapstructure:"postgres"`
}

type PebbleConfig struct {
	Dir string `mapstructure:"dir"`
}

func Default() Config {
	return Config{
		Datasource:    "ledger-postgres",
		Database:      "redis",
		StateDatabase: "postgres",
		APIHandlers:   []string{"http"},
		Pebble: PebbleConfig{
			Dir: "./data/blockindex",
		},
	}
}

// Validate rejects store combinations that break at-most-once indexing. A progress
// marker that is lost on restart over an index store that is not would index the
// stored heights again and duplicate their list entries.
func (c Config) Validate() error {
	if isVolatile(c.StateDatabase) && !isVolatile(c.Database) {
		return errors.Wrapf(errs.InvalidArgument, "%q state database can't track progress of the persistent %q index store", c.StateDatabase, c.Database)
	}
	return nil
}

func isVolatile(database string) bool {
	return strings.EqualFold(database, "memory")
}
