// Package store persists home-range runs in SQLite.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary. A run holds one row per individual plus its contour polygons
// (GeoJSON geometry text) and its area curve.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/homerange/internal/timeutil"
)

// DB wraps a SQLite handle opened with the pragmas the store relies on.
type DB struct {
	*sql.DB

	// Clock stamps runs saved without a CreatedAt.
	Clock timeutil.Clock
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens (creating if needed) the database at path. It does not run
// migrations; call MigrateUp before use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps pragmas such as
	// foreign_keys in force for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	diagf("opened %s", path)
	return &DB{DB: db, Clock: timeutil.RealClock{}}, nil
}
