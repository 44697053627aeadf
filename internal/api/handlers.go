package api

import (
	"net/http"

	"github.com/quernstone/portcullis/internal/api/presenter"
	"github.com/quernstone/portcullis/internal/buildinfo"
	"github.com/quernstone/portcullis/internal/core"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleWhoami echoes the admitted principal back to the caller.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	principal, ok := core.PrincipalFromContext(r.Context())
	if !ok {
		// only reachable when the route is mounted outside the gate
		presenter.Error(w, r, "no principal attached", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, principal, http.StatusOK)
}

// handlePing is the minimal protected endpoint for smoke checks.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string]string{"message": "pong"}, http.StatusOK)
}
