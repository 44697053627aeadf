package core

import "time"

// Claims is the decoded, verified payload of a session token.
// Immutable once produced by the verifier; never persisted.
type Claims struct {
	// Subject is the principal identifier the token was issued for.
	Subject string

	// TokenID is the jti claim, when the issuer set one.
	TokenID string

	// IssuedAt is the iat claim, zero when absent.
	IssuedAt time.Time

	// ExpiresAt is the exp claim. Always set: tokens without an expiry
	// are rejected as malformed.
	ExpiresAt time.Time
}
