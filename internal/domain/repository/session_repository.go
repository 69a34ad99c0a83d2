// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for session persistence.
var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionAlreadyConsumed is returned when a guarded deactivation hits a
	// session that was already rotated or revoked by a concurrent request.
	ErrSessionAlreadyConsumed = errors.New("session already consumed")
)

// SessionRepository defines the operations for refresh-token-backed session
// management. This supports multi-device login and remote logout.
type SessionRepository interface {
	// Create persists a new session, representing a user login.
	Create(ctx context.Context, session *entity.Session) error

	// FindByLookupHash retrieves a session by the SHA-256 lookup hash of its
	// refresh token. Only the lookup hash is indexed; the bcrypt token hash is
	// verified by the caller.
	FindByLookupHash(ctx context.Context, lookupHash string) (*entity.Session, error)

	// DeactivateIfActive flips is_active to false only if the session is still
	// active. Returns ErrSessionAlreadyConsumed when the guard matches no row,
	// so exactly one of two concurrent refreshes wins.
	DeactivateIfActive(ctx context.Context, id uuid.UUID, revokedAt time.Time) error

	// DeactivateByUserID revokes every active session belonging to a user.
	// Returns the number of sessions revoked.
	DeactivateByUserID(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error)

	// DeleteExpired removes sessions whose expiry has passed. This is called
	// periodically for cleanup.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// CountActiveByUserID returns the number of active, unexpired sessions for
	// a user. Used to enforce the concurrent session limit.
	CountActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// FindCreatedInRange retrieves sessions created within a time range for
	// security event reporting.
	FindCreatedInRange(ctx context.Context, from, to time.Time) ([]*entity.Session, error)
}
