package core

import (
	"context"
	"errors"
)

// ErrPrincipalNotFound marks a definitive directory miss: the identifier
// was verified but no principal exists for it (e.g. the account was
// deleted after the token was issued). Transport and store failures are
// returned as ordinary errors and classified as lookup failures, never as
// this sentinel.
var ErrPrincipalNotFound = errors.New("principal not found")

// Directory resolves verified token subjects to principal records.
// Implementations: config-seeded memory directory, Redis directory.
type Directory interface {
	// FindByID returns the principal for a stable identifier.
	// A miss returns ErrPrincipalNotFound; any other error is treated as
	// transient. No caching, no retries.
	FindByID(ctx context.Context, id string) (*Principal, error)
}
