package core

import (
	"net/http"
	"time"
)

// Reason classifies why the gate refused a request. Each reason is
// reported with its own status code and client-safe message; reasons are
// never collapsed into a generic unauthorized.
type Reason string

const (
	// ReasonNoCredential: no candidate token in any transport location.
	ReasonNoCredential Reason = "no_credential"
	// ReasonMalformedToken: structurally invalid token, signature
	// mismatch, or unsupported algorithm.
	ReasonMalformedToken Reason = "malformed_token"
	// ReasonExpiredToken: signature valid, expiry in the past.
	ReasonExpiredToken Reason = "expired_token"
	// ReasonPrincipalNotFound: the subject is not in the directory.
	ReasonPrincipalNotFound Reason = "principal_not_found"
	// ReasonLookupFailed: the directory could not be consulted.
	ReasonLookupFailed Reason = "lookup_failed"
	// ReasonRateLimited: the principal exhausted its window quota.
	ReasonRateLimited Reason = "rate_limited"
	// ReasonInternalFault: a stage panicked or failed unexpectedly.
	ReasonInternalFault Reason = "internal_fault"
)

// StatusCode returns the HTTP status this reason is surfaced with.
func (r Reason) StatusCode() int {
	switch r {
	case ReasonNoCredential, ReasonMalformedToken, ReasonExpiredToken:
		return http.StatusUnauthorized
	case ReasonPrincipalNotFound:
		return http.StatusForbidden
	case ReasonLookupFailed:
		return http.StatusServiceUnavailable
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe description for this reason. Internal
// detail never travels here; it belongs in server-side logs only.
func (r Reason) Message() string {
	switch r {
	case ReasonNoCredential:
		return "authentication required"
	case ReasonMalformedToken:
		return "credential malformed or signature invalid"
	case ReasonExpiredToken:
		return "credential expired"
	case ReasonPrincipalNotFound:
		return "principal not recognized"
	case ReasonLookupFailed:
		return "identity directory unavailable"
	case ReasonRateLimited:
		return "request quota exceeded"
	default:
		return "internal server error"
	}
}

// Denial is the explicit rejection result a gate stage terminates a
// request with. Denials are values, not panics; panics are reserved for
// internal faults.
type Denial struct {
	Reason Reason

	// RetryAfter hints when the client may try again (rate limited,
	// directory outage). Zero means no hint.
	RetryAfter time.Duration

	// Limit and Remaining describe the quota behind a rate-limit denial
	// and surface as X-RateLimit headers. A zero Limit means no quota
	// applies to this denial.
	Limit     int
	Remaining int
}

// Deny builds a Denial for the given reason.
func Deny(reason Reason) *Denial {
	return &Denial{Reason: reason}
}

func (d *Denial) StatusCode() int { return d.Reason.StatusCode() }

func (d *Denial) Message() string { return d.Reason.Message() }
