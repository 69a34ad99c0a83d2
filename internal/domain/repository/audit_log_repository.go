// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"
)

// AuditLogRepository defines the operations over the authentication and
// authorization audit trails. Writers treat failures as best-effort; an audit
// write must never fail the request it describes.
type AuditLogRepository interface {
	// RecordAuthEvent appends one authentication event row.
	RecordAuthEvent(ctx context.Context, log *entity.AuthLog) error

	// RecordRBACViolation appends one rejected authorization decision.
	RecordRBACViolation(ctx context.Context, violation *entity.RBACViolation) error

	// FindAuthEventsInRange retrieves authentication events within a time
	// range for security event reporting.
	FindAuthEventsInRange(ctx context.Context, from, to time.Time) ([]*entity.AuthLog, error)

	// FindRBACViolationsInRange retrieves authorization violations within a
	// time range for security event reporting.
	FindRBACViolationsInRange(ctx context.Context, from, to time.Time) ([]*entity.RBACViolation, error)
}
