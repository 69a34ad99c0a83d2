// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"
)

// LoginAttemptRepository defines the operations over the append-only
// brute-force log. Counting always happens before the password hash is
// checked, so a locked account costs no hashing work.
type LoginAttemptRepository interface {
	// Record appends one attempt row. Rows are never updated.
	Record(ctx context.Context, attempt *entity.LoginAttempt) error

	// CountRecentFailures counts failed attempts for an email since the given
	// time. The email is matched against its stored lower-cased form.
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int64, error)

	// PurgeFailures deletes all failure rows for an email, resetting the
	// lockout counter after a successful login.
	PurgeFailures(ctx context.Context, email string) error

	// FindInRange retrieves attempts within a time range for security event
	// reporting.
	FindInRange(ctx context.Context, from, to time.Time) ([]*entity.LoginAttempt, error)
}
