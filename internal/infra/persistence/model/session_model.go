package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'user_sessions' table. The raw refresh token never
// reaches this table: TokenHash holds the bcrypt hash used for verification
// and LookupHash the indexed SHA-256 digest used for retrieval.
type SessionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash  string    `gorm:"type:varchar(255);not null"`
	LookupHash string    `gorm:"type:char(64);not null;uniqueIndex"`
	DeviceInfo string    `gorm:"type:varchar(255)"`
	IPAddress  string    `gorm:"type:varchar(45)"`
	UserAgent  string    `gorm:"type:text"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	IsActive   bool      `gorm:"not null;default:true"`
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "user_sessions"
}
