// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"nutriauth/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// DeviceInfo carries the request metadata recorded with a session.
type DeviceInfo struct {
	Device    string
	IPAddress string
	UserAgent string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
	Device   DeviceInfo
}

// VerifyMfaInput defines the data required to complete an MFA-gated login.
// The password is re-validated alongside the code.
type VerifyMfaInput struct {
	Email    string
	Password string
	Code     string
	Device   DeviceInfo
}

// RefreshInput defines the data required to rotate a token pair.
type RefreshInput struct {
	RefreshToken string
	Device       DeviceInfo
}

// LogoutInput defines the data required to end a single session.
type LogoutInput struct {
	RefreshToken string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created user's basic information.
type RegisterOutput struct {
	User *entity.PublicUser
}

// TokenPairOutput returns a freshly issued access/refresh token pair.
// ExpiresIn is the access token lifetime in seconds.
type TokenPairOutput struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *entity.PublicUser
}

// LoginOutput returns either a completed login or a pending MFA challenge.
// When MfaRequired is set the token fields are empty and the client must call
// the MFA verification operation. DevCode carries the issued one-time code
// only when the development exposure gate is on; it is never set in
// production.
type LoginOutput struct {
	MfaRequired bool
	DevCode     string
	Tokens      *TokenPairOutput
}

// AuthUsecase defines the interface for authentication business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	VerifyMfa(ctx context.Context, input VerifyMfaInput) (*TokenPairOutput, error)
	Refresh(ctx context.Context, input RefreshInput) (*TokenPairOutput, error)
	Logout(ctx context.Context, input LogoutInput) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error)
	Profile(ctx context.Context, userID uuid.UUID) (*entity.PublicUser, error)
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}
