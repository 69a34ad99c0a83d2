// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"nutriauth/config"
	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/domain/service"
)

// codeRange spans the 6-digit code space [100000, 999999].
var codeRange = big.NewInt(900000)

// mfaManager implements the one-time code challenge lifecycle on top of a
// TTL-backed challenge store.
type mfaManager struct {
	store       repository.ChallengeStore
	logger      *slog.Logger
	codeTTL     time.Duration
	maxAttempts int
}

// MfaParams defines the dependencies for the MFA manager.
type MfaParams struct {
	fx.In

	Config *config.Config
	Store  repository.ChallengeStore
	Logger *slog.Logger
}

// NewMfaManager is the constructor for mfaManager.
func NewMfaManager(params MfaParams) service.MfaManager {
	return &mfaManager{
		store:       params.Store,
		logger:      params.Logger,
		codeTTL:     params.Config.MFA.CodeTTL,
		maxAttempts: params.Config.MFA.MaxAttempts,
	}
}

// Issue creates a fresh challenge for the subject, superseding any pending
// one. The store's TTL bounds the challenge lifetime even if verification
// never happens.
func (m *mfaManager) Issue(ctx context.Context, subject string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", errors.Wrap(err, "generate mfa code")
	}

	challenge := &entity.MfaChallenge{
		Code:     code,
		IssuedAt: time.Now(),
	}
	if err := m.store.Put(ctx, subject, challenge, m.codeTTL); err != nil {
		return "", errors.Wrap(err, "store mfa challenge")
	}

	return code, nil
}

// Verify checks a submitted code against the pending challenge. The challenge
// is consumed on success and discarded when the attempt limit is reached, so
// a code can neither be replayed nor brute-forced within its TTL.
func (m *mfaManager) Verify(ctx context.Context, subject, code string) error {
	challenge, err := m.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return domainerrors.ErrMFACodeExpired
		}

		return errors.Wrap(err, "load mfa challenge")
	}

	if challenge.ExpiredAt(time.Now(), m.codeTTL) {
		// The store's TTL normally handles this; double-check for stores with
		// coarser expiry.
		if err := m.store.Delete(ctx, subject); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired mfa challenge", slog.Any("error", err))
		}

		return domainerrors.ErrMFACodeExpired
	}

	if !constantTimeEqual(challenge.Code, code) {
		// The counter lives in the store and is advanced atomically, so
		// concurrent wrong guesses cannot slip past the cap on a stale read.
		remaining := m.codeTTL - time.Since(challenge.IssuedAt)
		attempts, err := m.store.IncrAttempts(ctx, subject, remaining)
		if err != nil {
			return errors.Wrap(err, "advance mfa attempt counter")
		}
		if attempts >= int64(m.maxAttempts) {
			if err := m.store.Delete(ctx, subject); err != nil {
				m.logger.WarnContext(ctx, "failed to discard exhausted mfa challenge", slog.Any("error", err))
			}

			return domainerrors.ErrMFATooManyAttempts
		}

		return domainerrors.ErrMFACodeInvalid
	}

	// Single-use: consume the challenge on success.
	if err := m.store.Delete(ctx, subject); err != nil {
		return errors.Wrap(err, "consume mfa challenge")
	}

	return nil
}

// generateCode draws a uniformly distributed 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", err
	}

	return big.NewInt(0).Add(n, big.NewInt(100000)).String(), nil
}
