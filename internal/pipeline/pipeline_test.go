package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quernstone/portcullis/internal/core"
	"github.com/quernstone/portcullis/internal/credential"
	"github.com/quernstone/portcullis/internal/ratelimit"
	"github.com/quernstone/portcullis/internal/token"
)

var chainSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeDirectory scripts the lookup stage's collaborator: it can serve a
// principal, miss, fail, or panic, and counts how often it was consulted.
type fakeDirectory struct {
	principal *core.Principal
	err       error
	panicWith any
	calls     int
}

func (f *fakeDirectory) FindByID(_ context.Context, id string) (*core.Principal, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.principal == nil || f.principal.ID != id {
		return nil, core.ErrPrincipalNotFound
	}
	return f.principal, nil
}

func newGate(t *testing.T, dir core.Directory, max int) (*Chain, *ratelimit.Store) {
	t.Helper()

	verifier, err := token.NewVerifier(chainSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	limiter, err := ratelimit.NewStore(max, time.Minute)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewGateChain(credential.New("", "", ""), verifier, dir, limiter), limiter
}

func mintToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()

	minted, err := token.Mint(chainSecret, subject, ttl)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return minted.Value
}

func bearerRequest(tok string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	return r
}

func TestChain_Admitted(t *testing.T) {
	dir := &fakeDirectory{principal: &core.Principal{ID: "u1", Name: "Ada Lovelace"}}
	chain, _ := newGate(t, dir, 10)

	req := &Request{HTTP: bearerRequest(mintToken(t, "u1", time.Hour))}
	out := chain.Run(context.Background(), req)

	if out.State != StateAdmitted {
		t.Fatalf("State = %v, want %v (denial: %+v)", out.State, StateAdmitted, out.Denial)
	}
	if out.Principal == nil || out.Principal.ID != "u1" {
		t.Fatalf("Principal = %+v, want u1", out.Principal)
	}

	// The stages populate the request progressively.
	if req.Credential.Source != core.SourceBearer {
		t.Errorf("Credential.Source = %q, want %q", req.Credential.Source, core.SourceBearer)
	}
	if req.Claims.Subject != "u1" {
		t.Errorf("Claims.Subject = %q, want %q", req.Claims.Subject, "u1")
	}
	if !req.Decision.Allowed || req.Decision.Count != 1 {
		t.Errorf("Decision = %+v, want allowed with count 1", req.Decision)
	}
}

// A request with no credential is rejected by the first stage: the
// verifier never runs, the directory is never consulted, and no quota is
// spent.
func TestChain_ShortCircuitNoCredential(t *testing.T) {
	dir := &fakeDirectory{principal: &core.Principal{ID: "u1"}}
	chain, limiter := newGate(t, dir, 10)

	out := chain.Run(context.Background(), &Request{HTTP: bearerRequest("")})

	if out.State != StateRejected {
		t.Fatalf("State = %v, want %v", out.State, StateRejected)
	}
	if out.Denial.Reason != core.ReasonNoCredential {
		t.Errorf("Reason = %q, want %q", out.Denial.Reason, core.ReasonNoCredential)
	}
	if dir.calls != 0 {
		t.Errorf("directory consulted %d times for a credential-less request", dir.calls)
	}
	// The limiter table is untouched: u1's next admission starts at 1.
	if d := limiter.Admit("u1"); d.Count != 1 {
		t.Errorf("limiter counted a short-circuited request (count %d)", d.Count)
	}
}

func TestChain_Classifications(t *testing.T) {
	foreign := []byte("fedcba9876543210fedcba9876543210")

	tests := []struct {
		name       string
		directory  *fakeDirectory
		token      func(t *testing.T) string
		wantReason core.Reason
	}{
		{
			name:       "expired token",
			directory:  &fakeDirectory{principal: &core.Principal{ID: "u1"}},
			token:      func(t *testing.T) string { return mintToken(t, "u1", -time.Hour) },
			wantReason: core.ReasonExpiredToken,
		},
		{
			name:      "foreign signature",
			directory: &fakeDirectory{principal: &core.Principal{ID: "u1"}},
			token: func(t *testing.T) string {
				minted, err := token.Mint(foreign, "u1", time.Hour)
				if err != nil {
					t.Fatalf("Mint() error = %v", err)
				}
				return minted.Value
			},
			wantReason: core.ReasonMalformedToken,
		},
		{
			name:       "garbage token",
			directory:  &fakeDirectory{principal: &core.Principal{ID: "u1"}},
			token:      func(*testing.T) string { return "not.a.token" },
			wantReason: core.ReasonMalformedToken,
		},
		{
			name:       "unknown subject",
			directory:  &fakeDirectory{},
			token:      func(t *testing.T) string { return mintToken(t, "ghost", time.Hour) },
			wantReason: core.ReasonPrincipalNotFound,
		},
		{
			name:       "directory unreachable",
			directory:  &fakeDirectory{err: errors.New("dial tcp: connection refused")},
			token:      func(t *testing.T) string { return mintToken(t, "u1", time.Hour) },
			wantReason: core.ReasonLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, _ := newGate(t, tt.directory, 10)

			out := chain.Run(context.Background(), &Request{HTTP: bearerRequest(tt.token(t))})
			if out.State != StateRejected {
				t.Fatalf("State = %v, want %v", out.State, StateRejected)
			}
			if out.Denial.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", out.Denial.Reason, tt.wantReason)
			}

			if tt.wantReason == core.ReasonLookupFailed && out.Denial.RetryAfter <= 0 {
				t.Error("lookup failure carries no retry hint")
			}
		})
	}
}

func TestChain_RateLimited(t *testing.T) {
	dir := &fakeDirectory{principal: &core.Principal{ID: "u1"}}
	chain, _ := newGate(t, dir, 1)
	tok := mintToken(t, "u1", time.Hour)

	if out := chain.Run(context.Background(), &Request{HTTP: bearerRequest(tok)}); out.State != StateAdmitted {
		t.Fatalf("first request: State = %v, want %v", out.State, StateAdmitted)
	}

	out := chain.Run(context.Background(), &Request{HTTP: bearerRequest(tok)})
	if out.State != StateRejected {
		t.Fatalf("second request: State = %v, want %v", out.State, StateRejected)
	}
	d := out.Denial
	if d.Reason != core.ReasonRateLimited {
		t.Fatalf("Reason = %q, want %q", d.Reason, core.ReasonRateLimited)
	}
	if d.Limit != 1 || d.Remaining != 0 {
		t.Errorf("quota hints = limit %d remaining %d, want 1 and 0", d.Limit, d.Remaining)
	}
	if d.RetryAfter <= 0 {
		t.Error("rate-limit denial carries no retry hint")
	}
}

// A panicking stage routes to the fault handler: the client-facing denial
// is generic while the server log captures the stage and the original
// panic.
func TestChain_FaultIsolation(t *testing.T) {
	dir := &fakeDirectory{panicWith: "directory exploded: secret detail"}
	chain, _ := newGate(t, dir, 10)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	out := chain.Run(ctx, &Request{HTTP: bearerRequest(mintToken(t, "u1", time.Hour))})

	if out.State != StateFaulted {
		t.Fatalf("State = %v, want %v", out.State, StateFaulted)
	}
	if out.Denial.Reason != core.ReasonInternalFault {
		t.Errorf("Reason = %q, want %q", out.Denial.Reason, core.ReasonInternalFault)
	}
	if got := out.Denial.Message(); got != "internal server error" {
		t.Errorf("client message = %q, want the generic one", got)
	}

	logged := buf.String()
	if !strings.Contains(logged, "pipeline.fault") {
		t.Errorf("server log missing fault marker: %s", logged)
	}
	if !strings.Contains(logged, `"stage":"lookup"`) {
		t.Errorf("server log missing faulting stage: %s", logged)
	}
	if !strings.Contains(logged, "directory exploded") {
		t.Errorf("server log missing original panic: %s", logged)
	}
}

// An unexpected (non-sentinel) stage error faults the run the same way a
// panic does.
func TestChain_FaultOnStageError(t *testing.T) {
	boom := errors.New("wiring mistake")
	chain := New(stageFunc{name: "broken", fn: func(context.Context, *Request) (*core.Denial, error) {
		return nil, boom
	}})

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	out := chain.Run(logger.WithContext(context.Background()), &Request{})
	if out.State != StateFaulted {
		t.Fatalf("State = %v, want %v", out.State, StateFaulted)
	}
	if !strings.Contains(buf.String(), "wiring mistake") {
		t.Errorf("server log missing original error: %s", buf.String())
	}
}

// stageFunc adapts a closure into a Stage for chain-mechanics tests.
type stageFunc struct {
	name string
	fn   func(context.Context, *Request) (*core.Denial, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(ctx context.Context, req *Request) (*core.Denial, error) {
	return s.fn(ctx, req)
}

func TestChain_StageOrderAndShortCircuit(t *testing.T) {
	var order []string
	record := func(name string, denial *core.Denial) stageFunc {
		return stageFunc{name: name, fn: func(context.Context, *Request) (*core.Denial, error) {
			order = append(order, name)
			return denial, nil
		}}
	}

	chain := New(
		record("first", nil),
		record("second", core.Deny(core.ReasonNoCredential)),
		record("third", nil),
	)

	out := chain.Run(context.Background(), &Request{})
	if out.State != StateRejected {
		t.Fatalf("State = %v, want %v", out.State, StateRejected)
	}
	if got, want := strings.Join(order, ","), "first,second"; got != want {
		t.Errorf("stage order = %q, want %q", got, want)
	}
}

// A client disconnect must not abandon the run: stages still execute and
// the quota increment still lands.
func TestChain_RunsToCompletionWithCanceledContext(t *testing.T) {
	dir := &fakeDirectory{principal: &core.Principal{ID: "u1"}}
	chain, limiter := newGate(t, dir, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := chain.Run(ctx, &Request{HTTP: bearerRequest(mintToken(t, "u1", time.Hour))})
	if out.State != StateAdmitted {
		t.Fatalf("State = %v, want %v", out.State, StateAdmitted)
	}
	// The admission above counted: the next one continues at 2.
	if d := limiter.Admit("u1"); d.Count != 2 {
		t.Errorf("limiter count = %d, want 2", d.Count)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePending, "pending"},
		{StateRunning, "running"},
		{StateRejected, "rejected"},
		{StateFaulted, "faulted"},
		{StateAdmitted, "admitted"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
