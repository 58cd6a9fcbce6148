// Package cache persists geocode results in SQLite so repeated addresses are
// answered without a provider call.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/darren-owldoor/owldoor-geocoder/pkg/geocode"
)

// Store is a SQLite-backed geocode result cache. Negative results are cached
// alongside matches.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and runs the migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query_hash TEXT PRIMARY KEY,
	latitude   REAL,
	longitude  REAL,
	formatted  TEXT,
	matched    INTEGER NOT NULL,
	provider   TEXT NOT NULL,
	cached_at  DATETIME NOT NULL
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the SHA-256 hex of the normalized query used as the cache key.
func Key(query string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("%x", h)
}

// Get returns the cached result for query, or nil on a miss.
func (s *Store) Get(ctx context.Context, query string) (*geocode.Result, error) {
	var lat, lon sql.NullFloat64
	var formatted sql.NullString
	var matched bool
	var provider string

	row := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, formatted, matched, provider
		 FROM geocode_cache WHERE query_hash = ?`, Key(query))
	err := row.Scan(&lat, &lon, &formatted, &matched, &provider)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}

	r := &geocode.Result{Matched: matched, Source: provider}
	if matched {
		r.Latitude = lat.Float64
		r.Longitude = lon.Float64
		r.FormattedAddress = formatted.String
	}
	return r, nil
}

// Put stores a result (match or non-match) for query, replacing any prior entry.
func (s *Store) Put(ctx context.Context, query string, r *geocode.Result) error {
	var lat, lon sql.NullFloat64
	var formatted sql.NullString
	if r.Matched {
		lat = sql.NullFloat64{Float64: r.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: r.Longitude, Valid: true}
		formatted = sql.NullString{String: r.FormattedAddress, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (query_hash, latitude, longitude, formatted, matched, provider, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (query_hash) DO UPDATE SET
			latitude  = excluded.latitude,
			longitude = excluded.longitude,
			formatted = excluded.formatted,
			matched   = excluded.matched,
			provider  = excluded.provider,
			cached_at = excluded.cached_at`,
		Key(query), lat, lon, formatted, r.Matched, r.Source, time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}
