package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quernstone/portcullis/internal/core"
	"github.com/quernstone/portcullis/internal/credential"
	"github.com/quernstone/portcullis/internal/ratelimit"
	"github.com/quernstone/portcullis/internal/token"
)

// lookupRetryAfter hints clients how long to back off when the identity
// directory is unreachable.
const lookupRetryAfter = 10 * time.Second

// NewGateChain wires the canonical stage order:
// resolve → verify → lookup → admit.
func NewGateChain(
	resolver *credential.Resolver,
	verifier *token.Verifier,
	directory core.Directory,
	limiter *ratelimit.Store,
) *Chain {
	return New(
		ResolveStage(resolver),
		VerifyStage(verifier),
		LookupStage(directory),
		AdmitStage(limiter),
	)
}

type resolveStage struct {
	resolver *credential.Resolver
}

// ResolveStage locates a candidate credential among the request's
// transport locations. A request without one terminates here; no later
// stage runs.
func ResolveStage(resolver *credential.Resolver) Stage {
	return &resolveStage{resolver: resolver}
}

func (s *resolveStage) Name() string { return "resolve" }

func (s *resolveStage) Run(_ context.Context, req *Request) (*core.Denial, error) {
	cred, ok := s.resolver.Resolve(req.HTTP)
	if !ok {
		return core.Deny(core.ReasonNoCredential), nil
	}
	req.Credential = cred
	return nil, nil
}

type verifyStage struct {
	verifier *token.Verifier
}

// VerifyStage validates the candidate against the shared secret and
// decodes its claims, keeping expiry distinguishable from tampering.
func VerifyStage(verifier *token.Verifier) Stage {
	return &verifyStage{verifier: verifier}
}

func (s *verifyStage) Name() string { return "verify" }

func (s *verifyStage) Run(ctx context.Context, req *Request) (*core.Denial, error) {
	claims, err := s.verifier.Verify(req.Credential.Token)
	switch {
	case errors.Is(err, token.ErrExpired):
		s.warn(ctx, req, err)
		return core.Deny(core.ReasonExpiredToken), nil
	case errors.Is(err, token.ErrMalformed):
		s.warn(ctx, req, err)
		return core.Deny(core.ReasonMalformedToken), nil
	case err != nil:
		return nil, err
	}
	req.Claims = claims
	return nil, nil
}

// warn records the rejected credential by fingerprint only; raw tokens
// never reach a log line.
func (s *verifyStage) warn(ctx context.Context, req *Request, err error) {
	log.Ctx(ctx).Warn().
		Err(err).
		Str("source", string(req.Credential.Source)).
		Str("token_fingerprint", token.Fingerprint(req.Credential.Token)).
		Msg("credential rejected")
}

type lookupStage struct {
	directory core.Directory
}

// LookupStage resolves the verified subject to a live principal record.
// A definitive miss and a directory failure terminate with different
// classifications: the former is a final rejection, the latter may pass
// on retry.
func LookupStage(directory core.Directory) Stage {
	return &lookupStage{directory: directory}
}

func (s *lookupStage) Name() string { return "lookup" }

func (s *lookupStage) Run(ctx context.Context, req *Request) (*core.Denial, error) {
	principal, err := s.directory.FindByID(ctx, req.Claims.Subject)
	switch {
	case errors.Is(err, core.ErrPrincipalNotFound):
		log.Ctx(ctx).Warn().
			Str("sub", req.Claims.Subject).
			Msg("verified subject not in directory")
		return core.Deny(core.ReasonPrincipalNotFound), nil
	case err != nil:
		log.Ctx(ctx).Error().
			Err(err).
			Str("sub", req.Claims.Subject).
			Msg("directory lookup failed")
		d := core.Deny(core.ReasonLookupFailed)
		d.RetryAfter = lookupRetryAfter
		return d, nil
	}
	req.Principal = principal
	return nil, nil
}

type admitStage struct {
	limiter *ratelimit.Store
}

// AdmitStage charges the request against the principal's window quota.
// It runs last so only fully authenticated requests consume quota.
func AdmitStage(limiter *ratelimit.Store) Stage {
	return &admitStage{limiter: limiter}
}

func (s *admitStage) Name() string { return "admit" }

func (s *admitStage) Run(ctx context.Context, req *Request) (*core.Denial, error) {
	decision := s.limiter.Admit(req.Principal.ID)
	req.Decision = decision

	if !decision.Allowed {
		log.Ctx(ctx).Warn().
			Str("sub", req.Principal.ID).
			Int("count", decision.Count).
			Int("limit", decision.Limit).
			Msg("request quota exceeded")
		d := core.Deny(core.ReasonRateLimited)
		d.RetryAfter = decision.RetryAfter
		d.Limit = decision.Limit
		d.Remaining = decision.Remaining
		return d, nil
	}
	return nil, nil
}
