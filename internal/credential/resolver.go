// Package credential locates candidate session tokens in incoming
// requests. Resolution only finds and tags a token string; it never
// inspects or verifies it.
package credential

import (
	"net/http"
	"strings"

	"github.com/quernstone/portcullis/internal/core"
)

// Default transport names, used when the config leaves them empty.
const (
	DefaultCookieName = "portcullis_session"
	DefaultHeaderName = "X-Auth-Token"
	DefaultQueryParam = "access_token"
)

// Resolver probes a fixed, ordered list of transport locations and
// returns the first non-empty candidate. The order is a deliberate
// tradeoff: the session cookie outranks the Authorization header because
// HttpOnly cookies are unreadable to page scripts, so when both carriers
// are present the cookie wins. Header and query parameter follow for
// non-browser clients.
type Resolver struct {
	cookieName string
	headerName string
	queryParam string

	probes []probe
}

// probe binds one transport location to its source tag. Keeping the
// priority as one ordered slice means it can be tested and reordered
// without touching any verification logic.
type probe struct {
	source core.Source
	lookup func(*http.Request) string
}

// New builds a Resolver for the given transport names. Empty names fall
// back to the package defaults.
func New(cookieName, headerName, queryParam string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	if queryParam == "" {
		queryParam = DefaultQueryParam
	}

	rs := &Resolver{
		cookieName: cookieName,
		headerName: headerName,
		queryParam: queryParam,
	}
	rs.probes = []probe{
		{core.SourceCookie, rs.fromCookie},
		{core.SourceBearer, fromBearer},
		{core.SourceHeader, rs.fromHeader},
		{core.SourceQuery, rs.fromQuery},
	}
	return rs
}

// Resolve returns the first candidate found in priority order, tagged
// with the source it came from. ok is false when no transport carried a
// token. Malformed strings pass through unchanged.
func (rs *Resolver) Resolve(r *http.Request) (core.Credential, bool) {
	for _, p := range rs.probes {
		if token := p.lookup(r); token != "" {
			return core.Credential{Token: token, Source: p.source}, true
		}
	}
	return core.Credential{}, false
}

func (rs *Resolver) fromCookie(r *http.Request) string {
	c, err := r.Cookie(rs.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// fromBearer accepts only the Bearer scheme. Other Authorization schemes
// (Basic, Digest, ...) are not session token carriers.
func fromBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func (rs *Resolver) fromHeader(r *http.Request) string {
	return r.Header.Get(rs.headerName)
}

func (rs *Resolver) fromQuery(r *http.Request) string {
	return r.URL.Query().Get(rs.queryParam)
}
