// Package pipeline executes the gate's ordered stage chain: credential
// resolution, token verification, directory lookup, and quota admission.
// Each stage either passes control forward, terminates the request with a
// classified denial, or faults; the first rejecting stage short-circuits
// the run, and faults route to a dedicated handler that never re-enters
// the chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/quernstone/portcullis/internal/core"
	"github.com/quernstone/portcullis/internal/ratelimit"
)

// State tracks a single chain run from creation to its terminal outcome.
type State int

const (
	// StatePending: the run has not started.
	StatePending State = iota
	// StateRunning: a stage is currently executing.
	StateRunning
	// StateRejected: a stage terminated the request with a denial.
	StateRejected
	// StateFaulted: a stage panicked or failed unexpectedly and the
	// fault handler took over.
	StateFaulted
	// StateAdmitted: every stage passed; the application handler may run.
	StateAdmitted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRejected:
		return "rejected"
	case StateFaulted:
		return "faulted"
	case StateAdmitted:
		return "admitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request is the per-request attachment point the stages populate
// progressively: credential, then claims, then principal, then the
// admission decision. It is owned by exactly one run and never shared
// across requests.
type Request struct {
	// HTTP is the inbound request the resolve stage probes for
	// credential carriers.
	HTTP *http.Request

	Credential core.Credential
	Claims     core.Claims
	Principal  *core.Principal
	Decision   ratelimit.Decision
}

// Stage is one link of the chain. Run returns (nil, nil) to pass control
// forward, a denial to terminate the request with that classification, or
// an error to hand the run to the fault handler. Stages must not retain
// request-scoped state between invocations.
type Stage interface {
	Name() string
	Run(ctx context.Context, req *Request) (*core.Denial, error)
}

// Outcome is the terminal result of one run. Denial is set for rejected
// and faulted runs; Principal is set for admitted ones.
type Outcome struct {
	State     State
	Denial    *core.Denial
	Principal *core.Principal
}

// Chain holds the ordered stage list. A Chain is immutable and safe for
// concurrent use; per-request state lives in the run it spawns.
type Chain struct {
	stages []Stage
}

// New builds a Chain executing the given stages in order.
func New(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Run executes the chain once for req and returns the terminal outcome.
// Stages run strictly in chain order and the run never interleaves with
// other requests' runs; only the rate limiter's table is shared between
// them.
func (c *Chain) Run(ctx context.Context, req *Request) Outcome {
	r := &run{chain: c, state: StatePending}
	return r.exec(ctx, req)
}

// run is the single-use executor for one request.
type run struct {
	chain *Chain
	state State
}

func (r *run) exec(ctx context.Context, req *Request) Outcome {
	for _, stage := range r.chain.stages {
		r.state = StateRunning

		denial, err := runStage(ctx, stage, req)
		switch {
		case err != nil:
			r.state = StateFaulted
			return r.fault(ctx, stage, err)
		case denial != nil:
			r.state = StateRejected
			return Outcome{State: r.state, Denial: denial}
		}
	}

	r.state = StateAdmitted
	return Outcome{State: r.state, Principal: req.Principal}
}

// runStage invokes one stage, converting a panic into an error carrying
// the stack captured at the panic site.
func runStage(ctx context.Context, stage Stage, req *Request) (denial *core.Denial, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			denial = nil
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	return stage.Run(ctx, req)
}

// fault is the dedicated error stage. It logs the original cause with
// full detail server-side and terminates the run with a generic denial;
// no internal error text, stack, or secret material crosses to the
// client, and the normal chain is never re-entered.
func (r *run) fault(ctx context.Context, stage Stage, err error) Outcome {
	evt := log.Ctx(ctx).Error().Str("stage", stage.Name())

	var pe *panicError
	if errors.As(err, &pe) {
		evt = evt.Interface("panic", pe.value).Bytes("stack", pe.stack)
	} else {
		evt = evt.Err(err)
	}
	evt.Msg("pipeline.fault")

	return Outcome{State: StateFaulted, Denial: core.Deny(core.ReasonInternalFault)}
}

// panicError carries a recovered stage panic to the fault handler.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("stage panic: %v", p.value)
}
