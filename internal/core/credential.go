package core

// Source identifies the transport location a candidate credential was
// pulled from. The resolver probes sources in a fixed priority order and
// tags the winner so the origin stays visible in logs and tests.
type Source string

const (
	// SourceCookie is the named session cookie.
	SourceCookie Source = "cookie"
	// SourceBearer is the Authorization header with a Bearer prefix.
	SourceBearer Source = "bearer"
	// SourceHeader is the custom single-value auth header.
	SourceHeader Source = "header"
	// SourceQuery is the named query-string parameter.
	SourceQuery Source = "query"
)

// Credential is an unverified candidate token together with the source it
// was resolved from. It exists only for the duration of one request's
// resolution step; nothing downstream of the verifier sees it.
type Credential struct {
	Token  string
	Source Source
}
