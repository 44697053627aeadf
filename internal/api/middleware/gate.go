package middleware

import (
	"net/http"

	"github.com/quernstone/portcullis/internal/api/presenter"
	"github.com/quernstone/portcullis/internal/core"
	"github.com/quernstone/portcullis/internal/pipeline"
)

// Gate runs the admission chain in front of the protected routes. Admitted
// requests continue with the principal attached to the context; everything
// else is answered with the chain's classified denial.
func Gate(chain *pipeline.Chain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := chain.Run(r.Context(), &pipeline.Request{HTTP: r})

			if outcome.State == pipeline.StateAdmitted {
				ctx := core.WithPrincipal(r.Context(), outcome.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// The stages have already run to completion; a dead client only
			// suppresses the response write.
			if r.Context().Err() != nil {
				return
			}
			presenter.Denial(w, r, outcome.Denial)
		})
	}
}
