package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
	CREATE TABLE IF NOT EXISTS session_entries (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (namespace, key)
	);
	CREATE INDEX IF NOT EXISTS idx_session_entries_expires_at ON session_entries(expires_at);
`

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewSessionRepository creates a PostgreSQL-backed session repository.
// A zero ttl keeps entries until they are removed.
func NewSessionRepository(pool *pgxpool.Pool, ttl time.Duration, logger zerolog.Logger) SessionRepository {
	return &sessionRepository{
		pool:   pool,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("repository", "session").Logger(),
	}
}

// EnsureSchema creates the session_entries table when missing.
func (r *sessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		r.logger.Error().Err(err).Msg("failed to create session schema")
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

// Scope returns storage bound to namespace.
func (r *sessionRepository) Scope(namespace string) session.Storage {
	return &pgStorage{repo: r, namespace: namespace}
}

// PurgeExpired deletes expired entries.
func (r *sessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM session_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to purge expired session entries")
		return 0, fmt.Errorf("failed to purge session entries: %w", err)
	}

	if n := tag.RowsAffected(); n > 0 {
		r.logger.Debug().Int64("deleted", n).Msg("purged expired session entries")
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepository) expiry() *time.Time {
	if r.ttl <= 0 {
		return nil
	}
	t := r.now().Add(r.ttl)
	return &t
}

type pgStorage struct {
	repo      *sessionRepository
	namespace string
}

func (s *pgStorage) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM session_entries
		WHERE namespace = $1 AND key = $2
		  AND (expires_at IS NULL OR expires_at > $3)
	`

	var value string
	err := s.repo.pool.QueryRow(ctx, query, s.namespace, key, s.repo.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.repo.logger.Error().
			Err(err).
			Str("namespace", s.namespace).
			Str("key", key).
			Msg("failed to read session entry")
		return "", false, fmt.Errorf("failed to read session entry: %w", err)
	}
	s.touch(ctx)
	return value, true, nil
}

// touch slides the expiry of the namespace after a read.
func (s *pgStorage) touch(ctx context.Context) {
	expires := s.repo.expiry()
	if expires == nil {
		return
	}
	_, err := s.repo.pool.Exec(ctx,
		`UPDATE session_entries SET expires_at = $2 WHERE namespace = $1 AND expires_at > $3`,
		s.namespace, expires, s.repo.now())
	if err != nil {
		s.repo.logger.Warn().Err(err).Str("namespace", s.namespace).Msg("failed to refresh session expiry")
	}
}

// Set upserts the entry and slides the expiry of the whole namespace, the
// same way the redis backend refreshes the TTL of its hash.
func (s *pgStorage) Set(ctx context.Context, key, value string) error {
	now := s.repo.now()
	expires := s.repo.expiry()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO session_entries (namespace, key, value, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
	`, s.namespace, key, value, now, expires)
	batch.Queue(`UPDATE session_entries SET expires_at = $2 WHERE namespace = $1 AND key <> $3`,
		s.namespace, expires, key)

	tx, err := s.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			s.repo.logger.Error().
				Err(err).
				Str("namespace", s.namespace).
				Str("key", key).
				Msg("failed to write session entry")
			return fmt.Errorf("failed to write session entry: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session entry: %w", err)
	}
	return nil
}

func (s *pgStorage) Remove(ctx context.Context, key string) error {
	_, err := s.repo.pool.Exec(ctx,
		`DELETE FROM session_entries WHERE namespace = $1 AND key = $2`, s.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to remove session entry: %w", err)
	}
	return nil
}
