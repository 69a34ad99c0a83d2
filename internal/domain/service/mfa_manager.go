package service

import "context"

// MfaManager defines the challenge lifecycle for email one-time codes.
// A challenge is single-use: a successful verification consumes it, and
// issuing a new one supersedes any pending challenge for the same subject.
type MfaManager interface {
	// Issue creates a new challenge for the subject and returns the code for
	// delivery. Any previous pending challenge is superseded.
	Issue(ctx context.Context, subject string) (code string, err error)

	// Verify checks a submitted code against the pending challenge. The
	// attempt counter advances on every mismatch; the challenge is consumed on
	// success and discarded once the attempt limit or TTL is reached.
	Verify(ctx context.Context, subject, code string) error
}
