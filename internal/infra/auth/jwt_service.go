// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"nutriauth/config"
	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/service"
)

const (
	accessTokenTTL  = time.Minute * 15
	refreshTokenTTL = time.Hour * 24 * 7

	// refreshTokenBytes is the entropy of an opaque refresh token. The token
	// on the wire is its hex encoding, 64 characters.
	refreshTokenBytes = 32
)

// jwtService is a concrete implementation of the TokenService interface.
// Access tokens are signed JWTs; refresh tokens are opaque random strings
// hashed before persistence.
type jwtService struct {
	accessSecret string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	bcryptCost   int
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	return &jwtService{
		accessSecret: cfg.SecretKey.Access,
		accessTTL:    accessTokenTTL,
		refreshTTL:   refreshTokenTTL,
		bcryptCost:   cfg.Auth.BcryptCost,
	}, nil
}

// GenerateAccessToken creates a signed, short-lived access token carrying the
// subject, role, and type claims.
func (s *jwtService) GenerateAccessToken(userID uuid.UUID, role entity.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role.String(),
		"type": service.TokenTypeAccess,
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.accessSecret))
}

// VerifyAccessToken checks a token's signature and expiry, then enforces the
// type claim so a leaked token of another kind can never act as an access
// token. Expiry maps to its own error so the middleware can tell clients to
// refresh rather than re-login.
func (s *jwtService) VerifyAccessToken(tokenString string) (*service.Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(s.accessSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.ErrTokenExpired
		}

		return nil, domainerrors.ErrTokenInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domainerrors.ErrTokenInvalid
	}

	tokenType, _ := mapClaims["type"].(string)
	if tokenType != service.TokenTypeAccess {
		return nil, domainerrors.ErrInvalidTokenType
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, domainerrors.ErrTokenInvalid
	}

	role, _ := mapClaims["role"].(string)

	return &service.Claims{
		UserID: userID,
		Role:   role,
		Type:   tokenType,
	}, nil
}

// NewRefreshToken mints an opaque refresh token from the system CSPRNG.
func (s *jwtService) NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}

	return hex.EncodeToString(buf), nil
}

// HashRefreshToken produces the bcrypt hash stored at rest. The raw token is
// never persisted.
func (s *jwtService) HashRefreshToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "hash refresh token")
	}

	return string(bytes), nil
}

// LookupHash produces the deterministic SHA-256 hex digest used to locate a
// session row by its token without a table scan.
func (s *jwtService) LookupHash(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// CheckRefreshToken compares a raw refresh token against its stored bcrypt
// hash.
func (s *jwtService) CheckRefreshToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// GetAccessTokenDuration returns the configured access token lifetime.
func (s *jwtService) GetAccessTokenDuration() time.Duration {
	return s.accessTTL
}

// GetRefreshTokenDuration returns the configured refresh token lifetime.
func (s *jwtService) GetRefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

// constantTimeEqual compares two strings without leaking their difference
// through timing. Used for one-time code comparison.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
