// Package entity contains the core business objects of the project.
package entity

import "time"

// MfaChallenge is a short-lived one-time code pending verification for a
// subject (the lower-cased login email). At most one unconsumed challenge is
// meaningful per subject; issuing a new one supersedes the old. The
// failed-attempt count is tracked by the challenge store, not here, so it can
// advance atomically under concurrent guesses.
type MfaChallenge struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issuedAt"`
}

// ExpiredAt reports whether the challenge has outlived the given TTL.
func (c *MfaChallenge) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.After(c.IssuedAt.Add(ttl))
}
