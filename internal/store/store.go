// Package store exports normalized tables to a SQLite snapshot database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/logging"
	"github.com/KaramelBytes/animelens/internal/utils"
)

// Store is an open snapshot database.
type Store struct {
	db   *sql.DB
	path string
}

// Snapshot describes one export.
type Snapshot struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	ModTime    int64     `json:"mod_time"`
	Size       int64     `json:"size"`
	Records    int       `json:"records"`
	ExportedAt time.Time `json:"exported_at"`
}

// ErrNoSnapshot is returned by LastSnapshot on an empty database.
var ErrNoSnapshot = errors.New("no snapshot exported yet")

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases and the pragma consistent
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logging.With("store").Debug().Str("path", path).Msg("snapshot database ready")
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Version returns the applied schema version.
func (s *Store) Version(ctx context.Context) (int64, error) { return schemaVersion(ctx, s.db) }

// ReplaceAll swaps the stored records for t's records in one transaction and
// records a snapshot row.
func (s *Store) ReplaceAll(ctx context.Context, t *dataset.Table) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM anime_genre`, `DELETE FROM anime`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return Snapshot{}, fmt.Errorf("clear: %w", err)
		}
	}
	insAnime, err := tx.PrepareContext(ctx, `
		INSERT INTO anime (mal_id, name, score, type, episodes, aired, year, studio,
			popularity, members, favorites, watching, completed, on_hold, dropped, plan_to_watch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("prepare anime insert: %w", err)
	}
	defer insAnime.Close()
	insGenre, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO anime_genre (row_id, genre) VALUES (?, ?)`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("prepare genre insert: %w", err)
	}
	defer insGenre.Close()

	for _, r := range t.Records {
		res, err := insAnime.ExecContext(ctx, r.ID, r.Name, r.Score, r.Type, r.Episodes, r.Aired, r.Year, r.Studio,
			r.Popularity, r.Members, r.Favorites, r.Watching, r.Completed, r.OnHold, r.Dropped, r.PlanToWatch)
		if err != nil {
			return Snapshot{}, fmt.Errorf("insert %q: %w", r.Name, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return Snapshot{}, fmt.Errorf("insert %q: %w", r.Name, err)
		}
		for _, g := range r.Genres {
			if _, err := insGenre.ExecContext(ctx, rowID, g); err != nil {
				return Snapshot{}, fmt.Errorf("insert genre %q: %w", g, err)
			}
		}
	}

	snap := Snapshot{
		Source:     t.Revision.Path,
		ModTime:    t.Revision.ModTime,
		Size:       t.Revision.Size,
		Records:    t.Len(),
		ExportedAt: time.Now().UTC(),
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO snapshot (source, mod_time, size, records, exported_at) VALUES (?, ?, ?, ?, ?)`,
		snap.Source, snap.ModTime, snap.Size, snap.Records, snap.ExportedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("record snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return Snapshot{}, fmt.Errorf("record snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	logging.With("store").Info().Int("records", snap.Records).Str("db", s.path).Msg("snapshot exported")
	return snap, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count anime: %w", err)
	}
	return n, nil
}

// GenreCounts returns how many stored records carry each genre.
func (s *Store) GenreCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT genre, COUNT(*) FROM anime_genre GROUP BY genre`)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var g string
		var n int
		if err := rows.Scan(&g, &n); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out[g] = n
	}
	return out, rows.Err()
}

// LastSnapshot returns the most recent export.
func (s *Store) LastSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `SELECT id, source, mod_time, size, records, exported_at FROM snapshot ORDER BY id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.Source, &snap.ModTime, &snap.Size, &snap.Records, &snap.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	return snap, nil
}
