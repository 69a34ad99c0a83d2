// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a long-lived, authorized user login backed by a refresh
// token. The raw refresh token is never persisted: TokenHash stores a bcrypt
// hash for verification and LookupHash a SHA-256 hex digest for indexed
// retrieval.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	LookupHash string
	DeviceInfo string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	IsActive   bool
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// IsUsable reports whether the session may still redeem a refresh token.
func (s *Session) IsUsable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
