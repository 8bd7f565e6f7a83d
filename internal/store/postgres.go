package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/db"
	"github.com/blocktrace/blocktrace/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	principal        TEXT NOT NULL,
	auth_method      TEXT NOT NULL,
	is_authenticated BOOLEAN NOT NULL DEFAULT true,
	login_time       TIMESTAMPTZ NOT NULL,
	expires_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	location  TEXT NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	source    TEXT NOT NULL DEFAULT '',
	quality   TEXT NOT NULL DEFAULT '',
	matched   BOOLEAN NOT NULL DEFAULT false,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess *model.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, principal, auth_method, is_authenticated, login_time, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET principal = EXCLUDED.principal, auth_method = EXCLUDED.auth_method,
		   is_authenticated = EXCLUDED.is_authenticated, login_time = EXCLUDED.login_time, expires_at = EXCLUDED.expires_at`,
		sess.ID, sess.Principal, string(sess.AuthMethod), sess.IsAuthenticated, sess.LoginTime, nullTime(sess.ExpiresAt),
	)
	return eris.Wrapf(err, "postgres: save session %s", sess.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		sess    model.Session
		method  string
		expires *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, principal, auth_method, is_authenticated, login_time, expires_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Principal, &method, &sess.IsAuthenticated, &sess.LoginTime, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	sess.AuthMethod = model.AuthMethod(method)
	if expires != nil {
		sess.ExpiresAt = *expires
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete session %s", id)
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		s.now(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired sessions")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string, maxAge time.Duration) (*model.GeocodeEntry, error) {
	var e model.GeocodeEntry
	err := s.pool.QueryRow(ctx,
		`SELECT key, location, latitude, longitude, source, quality, matched, cached_at
		 FROM geocode_cache WHERE key = $1 AND cached_at >= $2`,
		key, cutoff(s.now(), maxAge),
	).Scan(&e.Key, &e.Location, &e.Latitude, &e.Longitude, &e.Source, &e.Quality, &e.Matched, &e.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get geocode")
	}
	return &e, nil
}

func (s *PostgresStore) SetGeocode(ctx context.Context, e *model.GeocodeEntry) error {
	cachedAt := e.CachedAt
	if cachedAt.IsZero() {
		cachedAt = s.now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, location, latitude, longitude, source, quality, matched, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO UPDATE SET location = EXCLUDED.location, latitude = EXCLUDED.latitude,
		   longitude = EXCLUDED.longitude, source = EXCLUDED.source, quality = EXCLUDED.quality,
		   matched = EXCLUDED.matched, cached_at = EXCLUDED.cached_at`,
		e.Key, e.Location, e.Latitude, e.Longitude, e.Source, e.Quality, e.Matched, cachedAt,
	)
	return eris.Wrap(err, "postgres: set geocode")
}

var geocodeColumns = []string{"key", "location", "latitude", "longitude", "source", "quality", "matched", "cached_at"}

// ImportGeocodes bulk-loads cache entries through a COPY into a temp table.
func (s *PostgresStore) ImportGeocodes(ctx context.Context, entries []model.GeocodeEntry) (int, error) {
	now := s.now()
	rows := make([][]any, len(entries))
	for i, e := range entries {
		cachedAt := e.CachedAt
		if cachedAt.IsZero() {
			cachedAt = now
		}
		rows[i] = []any{e.Key, e.Location, e.Latitude, e.Longitude, e.Source, e.Quality, e.Matched, cachedAt}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "geocode_cache",
		Columns:      geocodeColumns,
		ConflictKeys: []string{"key"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import geocodes")
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteExpiredGeocodes(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM geocode_cache WHERE cached_at < $1`,
		cutoff(s.now(), maxAge),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired geocodes")
	}
	return int(tag.RowsAffected()), nil
}
