package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quernstone/portcullis/internal/api/middleware"
	"github.com/quernstone/portcullis/internal/pipeline"
)

type Server struct {
	chain *pipeline.Chain
}

func NewServer(chain *pipeline.Chain) *Server {
	return &Server{chain: chain}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.CorrelationIDMiddleware)
	r.Use(middleware.LoggingMiddleware)

	// public routes
	r.Get(HealthCheckRoute, s.handleHealth)
	r.Get(AboutRoute, s.handleAbout)

	// everything under /v1 answers only to admitted requests
	r.Group(func(r chi.Router) {
		r.Use(middleware.Gate(s.chain))
		r.Get(WhoamiRoute, s.handleWhoami)
		r.Get(PingRoute, s.handlePing)
	})

	return r
}
