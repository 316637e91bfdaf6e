package model

import "time"

// RegistrationTokenLength is the length of a pre-registration token.
const RegistrationTokenLength = 60

// PendingRegistration maps an emailed token to the address it was sent to.
// It lives only in the cache and is consumed once.
type PendingRegistration struct {
	Token     string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TTL returns how long the registration stays redeemable after now.
// A non-positive result means it has expired.
func (p *PendingRegistration) TTL(now time.Time) time.Duration {
	return p.ExpiresAt.Sub(now)
}
