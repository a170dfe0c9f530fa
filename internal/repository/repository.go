// Package repository stores visitor session entries in PostgreSQL.
package repository

import (
	"context"

	"storefront/internal/session"
)

// SessionRepository is a session backend persisted in PostgreSQL.
type SessionRepository interface {
	session.Backend

	// EnsureSchema creates the session_entries table when missing.
	EnsureSchema(ctx context.Context) error

	// PurgeExpired deletes entries whose namespace went idle past the TTL.
	PurgeExpired(ctx context.Context) (int64, error)
}
