package model

import "time"

// LoginAttemptModel mirrors the 'brute_force_logs' table. The table is
// append-only; the composite index serves the trailing-window failure count.
type LoginAttemptModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"type:varchar(255);not null;index:idx_brute_force_email_created"`
	IPAddress string    `gorm:"type:varchar(45)"`
	Success   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"index:idx_brute_force_email_created"`
}

// TableName explicitly sets the table name for GORM.
func (LoginAttemptModel) TableName() string {
	return "brute_force_logs"
}
