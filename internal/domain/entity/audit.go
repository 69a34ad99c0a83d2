// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is one append-only row of the brute-force log. Failure rows for
// an email are counted over a trailing window and bulk-purged on a successful
// login; rows are never updated.
type LoginAttempt struct {
	ID        int64
	Email     string
	IPAddress string
	Success   bool
	CreatedAt time.Time
}

// AuthLog records one authentication event (login success or failure) for the
// security event pipeline.
type AuthLog struct {
	ID        int64
	UserID    *uuid.UUID
	Email     string
	Success   bool
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// RBACViolation records one rejected authorization decision.
type RBACViolation struct {
	ID        int64
	UserID    string
	Email     string
	Role      string
	Endpoint  string
	Method    string
	Status    string
	CreatedAt time.Time
}
