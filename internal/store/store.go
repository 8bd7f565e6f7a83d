// Package store persists sessions and the geocode cache. SQLite is the
// default backend; Postgres is used when a database URL is configured.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Store defines the persistence interface for blocktrace.
type Store interface {
	// Sessions. GetSession returns nil, nil for an unknown ID.
	SaveSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Geocode cache. GetGeocode returns nil, nil on a miss or when the entry
	// is older than maxAge (zero disables the age check).
	GetGeocode(ctx context.Context, key string, maxAge time.Duration) (*model.GeocodeEntry, error)
	SetGeocode(ctx context.Context, e *model.GeocodeEntry) error
	ImportGeocodes(ctx context.Context, entries []model.GeocodeEntry) (int, error)
	DeleteExpiredGeocodes(ctx context.Context, maxAge time.Duration) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the backend.
type Config struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	Path        string      `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Pool        *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the configured store and runs its migration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "blocktrace.db"
		}
		s, err = NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
		s, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// cutoff returns the oldest acceptable cache timestamp for maxAge.
func cutoff(now time.Time, maxAge time.Duration) time.Time {
	if maxAge <= 0 {
		return time.Unix(0, 0).UTC()
	}
	return now.Add(-maxAge)
}
