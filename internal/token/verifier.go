// Package token verifies and mints the signed, expiring session tokens
// the gate trusts. Verification is strictly shared-secret HS256 with no
// I/O; issuance normally happens elsewhere, and the local minter exists
// for the CLI and tests.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"

	"github.com/quernstone/portcullis/internal/core"
)

// Classification sentinels. Callers branch with errors.Is; the concrete
// parse failure stays attached for server-side logs.
var (
	// ErrMalformed covers structurally invalid tokens, signature
	// mismatches, unsupported algorithms, and missing required claims.
	ErrMalformed = errors.New("token malformed")

	// ErrExpired covers tokens whose signature verifies but whose expiry
	// is in the past. Kept apart from ErrMalformed: it tells the client
	// to re-authenticate rather than to distrust the credential itself.
	ErrExpired = errors.New("token expired")
)

// Verifier validates candidate tokens against a shared HMAC secret.
//
// Verify is a pure function of (token, secret, now): no hidden state, and
// the clock is read exactly once per call so a single verification cannot
// straddle an expiry boundary.
type Verifier struct {
	secret []byte
	leeway time.Duration
	clock  abtime.AbstractTime
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLeeway tolerates clock skew between issuer and verifier when
// judging expiry. The default is zero: an expiry even slightly in the
// past classifies as expired.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

// WithClock substitutes the time source. Tests pass a manual clock.
func WithClock(clock abtime.AbstractTime) Option {
	return func(v *Verifier) { v.clock = clock }
}

// NewVerifier builds a Verifier for the given shared secret.
func NewVerifier(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	v := &Verifier{
		secret: secret,
		clock:  abtime.NewRealTime(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates raw and decodes its claims. Every failure classifies
// as exactly one of ErrMalformed or ErrExpired. The signature is checked
// before the expiry, so a token signed with the wrong secret classifies
// as malformed no matter what its exp says.
func (v *Verifier) Verify(raw string) (core.Claims, error) {
	now := v.clock.Now()

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var rc jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(raw, &rc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.Claims{}, fmt.Errorf("%w: %v", ErrExpired, err)
	case err != nil:
		return core.Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if rc.Subject == "" {
		return core.Claims{}, fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}

	claims := core.Claims{
		Subject:   rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, nil
}
