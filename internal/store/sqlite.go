package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/blocktrace/blocktrace/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	principal        TEXT NOT NULL,
	auth_method      TEXT NOT NULL,
	is_authenticated INTEGER NOT NULL DEFAULT 1,
	login_time       INTEGER NOT NULL,
	expires_at       INTEGER
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	location  TEXT NOT NULL,
	latitude  REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	source    TEXT NOT NULL DEFAULT '',
	quality   TEXT NOT NULL DEFAULT '',
	matched   INTEGER NOT NULL DEFAULT 0,
	cached_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, principal, auth_method, is_authenticated, login_time, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET principal = excluded.principal, auth_method = excluded.auth_method,
		   is_authenticated = excluded.is_authenticated, login_time = excluded.login_time, expires_at = excluded.expires_at`,
		sess.ID, sess.Principal, string(sess.AuthMethod), sess.IsAuthenticated,
		sess.LoginTime.UnixMilli(), toMillis(sess.ExpiresAt),
	)
	return eris.Wrapf(err, "sqlite: save session %s", sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, principal, auth_method, is_authenticated, login_time, expires_at FROM sessions WHERE id = ?`,
		id,
	)

	var (
		sess    model.Session
		method  string
		login   int64
		expires sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.Principal, &method, &sess.IsAuthenticated, &login, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	sess.AuthMethod = model.AuthMethod(method)
	sess.LoginTime = time.UnixMilli(login).UTC()
	sess.ExpiresAt = fromMillis(expires)
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete session %s", id)
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sessions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string, maxAge time.Duration) (*model.GeocodeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, location, latitude, longitude, source, quality, matched, cached_at
		 FROM geocode_cache WHERE key = ? AND cached_at >= ?`,
		key, cutoff(s.now(), maxAge).UnixMilli(),
	)

	var (
		e        model.GeocodeEntry
		cachedAt int64
	)
	err := row.Scan(&e.Key, &e.Location, &e.Latitude, &e.Longitude, &e.Source, &e.Quality, &e.Matched, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode")
	}
	e.CachedAt = time.UnixMilli(cachedAt).UTC()
	return &e, nil
}

const sqliteUpsertGeocode = `INSERT INTO geocode_cache (key, location, latitude, longitude, source, quality, matched, cached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET location = excluded.location, latitude = excluded.latitude,
	  longitude = excluded.longitude, source = excluded.source, quality = excluded.quality,
	  matched = excluded.matched, cached_at = excluded.cached_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsertGeocode(ctx context.Context, ex execer, e *model.GeocodeEntry) error {
	cachedAt := e.CachedAt
	if cachedAt.IsZero() {
		cachedAt = s.now()
	}
	_, err := ex.ExecContext(ctx, sqliteUpsertGeocode,
		e.Key, e.Location, e.Latitude, e.Longitude, e.Source, e.Quality, e.Matched, cachedAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) SetGeocode(ctx context.Context, e *model.GeocodeEntry) error {
	return eris.Wrap(s.upsertGeocode(ctx, s.db, e), "sqlite: set geocode")
}

func (s *SQLiteStore) ImportGeocodes(ctx context.Context, entries []model.GeocodeEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import geocodes: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range entries {
		if err := s.upsertGeocode(ctx, tx, &entries[i]); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import geocode %q", entries[i].Location)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import geocodes: commit")
	}
	return len(entries), nil
}

func (s *SQLiteStore) DeleteExpiredGeocodes(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE cached_at < ?`,
		cutoff(s.now(), maxAge).UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired geocodes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
