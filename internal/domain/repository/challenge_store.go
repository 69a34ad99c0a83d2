// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrChallengeNotFound is returned when no challenge exists for the subject,
// either because none was issued or because its TTL elapsed.
var ErrChallengeNotFound = errors.New("mfa challenge not found")

// ChallengeStore defines the short-lived storage for pending MFA challenges.
// Challenges expire by TTL and are keyed by the lower-cased login email, so a
// reissue for the same subject supersedes the previous challenge.
type ChallengeStore interface {
	// Put stores a challenge under the subject with the given TTL, replacing
	// any existing challenge for that subject.
	Put(ctx context.Context, subject string, challenge *entity.MfaChallenge, ttl time.Duration) error

	// Get retrieves the pending challenge for a subject. Returns
	// ErrChallengeNotFound when none exists.
	Get(ctx context.Context, subject string) (*entity.MfaChallenge, error)

	// IncrAttempts atomically advances the failed-verification counter for
	// the subject's challenge and returns the new count. Atomicity matters:
	// concurrent wrong guesses must each observe a distinct count or the
	// attempt cap can be overshot. The counter expires with the given TTL
	// and is reset by Put; Delete leaves it in place so guesses racing a
	// just-exhausted challenge cannot restart the count.
	IncrAttempts(ctx context.Context, subject string, ttl time.Duration) (int64, error)

	// Delete removes the pending challenge for a subject. Deleting a missing
	// challenge is not an error.
	Delete(ctx context.Context, subject string) error
}
