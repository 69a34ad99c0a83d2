// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus string

const (
	// AccountActive indicates the account may authenticate.
	AccountActive AccountStatus = "active"
	// AccountInactive indicates the account is disabled and must not authenticate.
	AccountInactive AccountStatus = "inactive"
)

// User is the core identity record. The email is stored lower-cased and is the
// login identifier; the password hash is the only credential material persisted.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	MFAEnabled   bool
	Status       AccountStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account is allowed to authenticate.
func (u *User) IsActive() bool {
	return u.Status == AccountActive
}

// PublicUser is the identity projection returned to clients. It never carries
// credential material.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	MFAEnabled bool      `json:"mfaEnabled"`
}

// Public strips credential material from the user record.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role.String(),
		MFAEnabled: u.MFAEnabled,
	}
}
