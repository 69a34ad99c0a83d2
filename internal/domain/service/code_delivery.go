package service

import "context"

// CodeDelivery defines the interface for sending one-time verification codes
// to users. Implementations must not log the code at INFO level or above.
type CodeDelivery interface {
	// SendVerificationCode delivers a one-time code to the recipient email.
	SendVerificationCode(ctx context.Context, email, code string) error
}

// AlertDelivery defines the interface for sending security notifications, such
// as a lockout alert after repeated failed logins.
type AlertDelivery interface {
	// SendSecurityAlert delivers a security notice to the recipient email.
	SendSecurityAlert(ctx context.Context, email, subject, body string) error
}
