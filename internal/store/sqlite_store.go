package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/showshelf/showshelf/pkg/file"
	_ "modernc.org/sqlite"
)

// ErrNotExist is returned by mutators targeting a tmdb id that has no row.
var ErrNotExist = errors.New("show does not exist")

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the single-file cache of ShowRecord rows. It assumes
// single-process access; the connection pool is pinned to one connection so
// writes serialize through sqlite's own locking.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Upsert inserts rec or overwrites the metadata fields of the existing row
// with the same tmdb id. Poster data and the rating survive a re-fetch;
// personal link and category are only taken from rec when rec actually
// carries them, so metadata refreshes never clobber user edits.
func (s *SQLiteStore) Upsert(ctx context.Context, rec ShowRecord) error {
	if rec.TMDBID <= 0 {
		return fmt.Errorf("tmdb id is required")
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("invalid media kind %q", rec.Kind)
	}
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO shows (
			tmdb_id, imdb_id, tvmaze_id, title, year, media_kind,
			overview, genres, status, seasons, episodes,
			poster_data, rt_score, personal_link, category, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tmdb_id) DO UPDATE SET
			imdb_id=excluded.imdb_id,
			tvmaze_id=excluded.tvmaze_id,
			title=excluded.title,
			year=excluded.year,
			media_kind=excluded.media_kind,
			overview=excluded.overview,
			genres=excluded.genres,
			status=excluded.status,
			seasons=excluded.seasons,
			episodes=excluded.episodes,
			personal_link=CASE WHEN excluded.personal_link != '' THEN excluded.personal_link ELSE shows.personal_link END,
			category=CASE WHEN excluded.category != '' THEN excluded.category ELSE shows.category END,
			updated_at=excluded.updated_at`,
		rec.TMDBID,
		nullString(rec.IMDBID),
		nullInt64(rec.TVMazeID),
		rec.Title,
		rec.Year,
		string(rec.Kind),
		rec.Overview,
		rec.Genres,
		rec.Status,
		rec.Seasons,
		rec.Episodes,
		rec.PosterData,
		rec.RTScore,
		rec.PersonalLink,
		rec.Category,
		createdAt,
		now,
	)
	return err
}

const showColumns = `tmdb_id, imdb_id, tvmaze_id, title, year, media_kind,
	overview, genres, status, seasons, episodes,
	poster_data, rt_score, personal_link, category, created_at, updated_at`

func scanShow(scan func(dest ...any) error) (ShowRecord, error) {
	var rec ShowRecord
	var imdbID sql.NullString
	var tvmazeID sql.NullInt64
	var kind string
	if err := scan(
		&rec.TMDBID,
		&imdbID,
		&tvmazeID,
		&rec.Title,
		&rec.Year,
		&kind,
		&rec.Overview,
		&rec.Genres,
		&rec.Status,
		&rec.Seasons,
		&rec.Episodes,
		&rec.PosterData,
		&rec.RTScore,
		&rec.PersonalLink,
		&rec.Category,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return ShowRecord{}, err
	}
	rec.IMDBID = imdbID.String
	rec.TVMazeID = tvmazeID.Int64
	rec.Kind = MediaKind(kind)
	return rec, nil
}

// Get returns the record for tmdbID. The boolean reports whether it exists.
func (s *SQLiteStore) Get(ctx context.Context, tmdbID int64) (ShowRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE tmdb_id = ?`, tmdbID)
	rec, err := scanShow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ShowRecord{}, false, nil
		}
		return ShowRecord{}, false, err
	}
	return rec, true, nil
}

// List returns every cached record, ordered case-insensitively by title with
// the tmdb id as a tiebreaker, so page generation is stable across runs.
func (s *SQLiteStore) List(ctx context.Context) ([]ShowRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+showColumns+` FROM shows ORDER BY title COLLATE NOCASE ASC, tmdb_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ShowRecord, 0)
	for rows.Next() {
		rec, err := scanShow(rows.Scan)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetPoster replaces the embedded poster data URI.
func (s *SQLiteStore) SetPoster(ctx context.Context, tmdbID int64, dataURI string) error {
	return s.updateField(ctx, tmdbID, "poster_data", dataURI)
}

// SetRating replaces the Rotten Tomatoes score.
func (s *SQLiteStore) SetRating(ctx context.Context, tmdbID int64, score string) error {
	return s.updateField(ctx, tmdbID, "rt_score", score)
}

// SetPersonalLink replaces the user-provided link. An empty url clears it.
func (s *SQLiteStore) SetPersonalLink(ctx context.Context, tmdbID int64, url string) error {
	return s.updateField(ctx, tmdbID, "personal_link", url)
}

// SetCategory replaces the grouping label.
func (s *SQLiteStore) SetCategory(ctx context.Context, tmdbID int64, label string) error {
	return s.updateField(ctx, tmdbID, "category", label)
}

func (s *SQLiteStore) updateField(ctx context.Context, tmdbID int64, column, value string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE shows SET `+column+` = ?, updated_at = ? WHERE tmdb_id = ?`,
		value,
		time.Now().UTC(),
		tmdbID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("show %d: %w", tmdbID, ErrNotExist)
	}
	return nil
}

// Delete removes the record. Deleting an absent id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, tmdbID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE tmdb_id = ?`, tmdbID)
	return err
}

// Count returns the number of cached records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shows`).Scan(&n)
	return n, err
}

// Backup writes a timestamped snapshot of the database into dir and returns
// the snapshot path. VACUUM INTO produces a consistent copy without closing
// the live connection.
func (s *SQLiteStore) Backup(ctx context.Context, dir string) (string, error) {
	if err := file.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	dest := filepath.Join(dir, file.TimestampedName("shelf.db", time.Now()))
	quoted := strings.ReplaceAll(dest, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", fmt.Errorf("backup database: %w", err)
	}
	return dest, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
