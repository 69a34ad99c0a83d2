package service

import (
	"time"

	"nutriauth/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type accepted by the HTTP middleware.
// Refresh tokens are opaque and never pass through JWT verification.
const TokenTypeAccess = "access"

// Claims defines the custom claims carried by access tokens.
type Claims struct {
	UserID uuid.UUID
	Role   string
	Type   string
	jwt.RegisteredClaims
}

// TokenService defines the interface for issuing access tokens and minting
// opaque refresh tokens. This abstracts signing and hashing details from the
// use cases.
type TokenService interface {
	// GenerateAccessToken creates a signed, short-lived access token.
	GenerateAccessToken(userID uuid.UUID, role entity.Role) (string, error)

	// VerifyAccessToken checks a token's signature, expiry, and type claim.
	VerifyAccessToken(tokenString string) (*Claims, error)

	// NewRefreshToken mints a new opaque refresh token. The raw token goes to
	// the client; only its hashes are persisted.
	NewRefreshToken() (string, error)

	// HashRefreshToken produces the slow verification hash stored at rest.
	HashRefreshToken(token string) (string, error)

	// LookupHash produces the deterministic digest used for indexed retrieval.
	LookupHash(token string) string

	// CheckRefreshToken compares a raw refresh token with its stored hash.
	CheckRefreshToken(token, hash string) bool

	// GetAccessTokenDuration returns the configured access token lifetime.
	GetAccessTokenDuration() time.Duration

	// GetRefreshTokenDuration returns the configured refresh token lifetime.
	GetRefreshTokenDuration() time.Duration
}
