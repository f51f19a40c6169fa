// Package postgres implements roster storage on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/platform/storage/migrate"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/louisbranch/roster/internal/services/roster/storage/postgres/migrations"
	"github.com/rs/zerolog"
)

var _ storage.Store = (*Store)(nil)

// Store provides PostgreSQL-backed roster persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	clock  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "postgres_store").Logger()
	}
}

// WithClock overrides the clock used to stamp rows written without a time.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open connects a pool to databaseURL and applies the embedded schema.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Storage("ping postgres", err)
	}

	store := &Store{pool: pool, logger: zerolog.Nop(), clock: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := migrate.ApplyPostgres(ctx, pool, migrations.FS, ""); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.Storage("ping postgres", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Storage("storage call", err)
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// classify wraps a driver error in the storage error family. SQLSTATE
// class 23 is an integrity constraint violation.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return apperrors.Wrap(apperrors.CodeStorageConstraint, message, err)
	}
	return apperrors.Storage(message, err)
}

func optionalText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func privacyOrDefault(level storage.PrivacyLevel) int16 {
	if !level.Valid() {
		return int16(storage.PrivacyPublic)
	}
	return int16(level)
}
