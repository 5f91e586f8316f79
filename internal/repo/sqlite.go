/*
Package repo keeps durable tank records and level history in SQLite.

Records are the credential store of the hub: a device is known only
while its row exists. History is an analytic trail and is never read
back into live state.
*/
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ferux/tankhub/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS tanks (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	location        TEXT NOT NULL,
	capacity        INTEGER NOT NULL DEFAULT 5000,
	height          INTEGER NOT NULL DEFAULT 100,
	alert_threshold INTEGER NOT NULL DEFAULT 10,
	secret          TEXT UNIQUE,
	device_id       TEXT UNIQUE,
	ip_address      TEXT
);

CREATE TABLE IF NOT EXISTS readings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	tank_id   TEXT NOT NULL,
	level     INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS readings_tank_timestamp ON readings (tank_id, timestamp);
CREATE INDEX IF NOT EXISTS readings_timestamp ON readings (timestamp);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA temp_store=MEMORY",
}

// SQLite is the credential and history store.
type SQLite struct {
	pool   *sqlitex.Pool
	logger zerolog.Logger
	path   string
}

// Open opens (and creates when missing) the database at cfg.Path.
func Open(cfg config.Store, logger zerolog.Logger) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, errors.New("repo: path is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Path, err)
	}

	s := &SQLite{
		pool:   pool,
		logger: logger.With().Str("pkg", "repo").Logger(),
		path:   cfg.Path,
	}

	s.logger.Info().Str("path", cfg.Path).Int("pool_size", poolSize).Msg("database opened")

	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}

// Close closes every connection of the pool.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.path, err)
	}

	s.logger.Info().Str("path", s.path).Msg("database closed")

	return nil
}

func (s *SQLite) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("taking connection: %w", err)
	}
	defer s.pool.Put(conn)

	return fn(conn)
}

// nullable maps empty strings to NULL so that unique columns accept
// several rows without a value.
func nullable(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func isConstraint(err error) bool {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey:
		return true
	default:
		return false
	}
}
