package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthLogModel mirrors the 'auth_logs' table recording authentication events.
type AuthLogModel struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	UserID    *uuid.UUID `gorm:"type:uuid;index"`
	Email     string     `gorm:"type:varchar(255);index"`
	Success   bool       `gorm:"not null"`
	IPAddress string     `gorm:"type:varchar(45)"`
	UserAgent string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (AuthLogModel) TableName() string {
	return "auth_logs"
}

// RBACViolationModel mirrors the 'rbac_violation_logs' table recording
// rejected authorization decisions.
type RBACViolationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(64)"`
	Email     string    `gorm:"type:varchar(255)"`
	Role      string    `gorm:"type:varchar(32)"`
	Endpoint  string    `gorm:"type:varchar(255)"`
	Method    string    `gorm:"type:varchar(16)"`
	Status    string    `gorm:"type:varchar(32)"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (RBACViolationModel) TableName() string {
	return "rbac_violation_logs"
}
