package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quernstone/portcullis/internal/api"
	"github.com/quernstone/portcullis/internal/config"
	"github.com/quernstone/portcullis/internal/credential"
	"github.com/quernstone/portcullis/internal/directory"
	"github.com/quernstone/portcullis/internal/pipeline"
	"github.com/quernstone/portcullis/internal/ratelimit"
	"github.com/quernstone/portcullis/internal/token"
)

var serveConfigFile string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Portcullis gate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log.Info().Str("backend", cfg.Directory.Backend).Msg("Initializing principal directory...")
		dir, err := directory.Build(cfg.Directory)
		if err != nil {
			return fmt.Errorf("building principal directory: %w", err)
		}
		if closer, ok := dir.(io.Closer); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					log.Warn().Err(err).Msg("closing principal directory")
				}
			}()
		}

		verifier, err := token.NewVerifier([]byte(cfg.Auth.Secret), token.WithLeeway(cfg.Auth.Leeway))
		if err != nil {
			return fmt.Errorf("building token verifier: %w", err)
		}

		limiter, err := ratelimit.NewStore(cfg.Limits.MaxRequests, cfg.Limits.Window)
		if err != nil {
			return fmt.Errorf("building rate limiter: %w", err)
		}
		limiter.Start()
		defer limiter.Stop()

		resolver := credential.New(cfg.Auth.Cookie, cfg.Auth.Header, cfg.Auth.QueryParam)
		chain := pipeline.NewGateChain(resolver, verifier, dir, limiter)

		srv := api.NewServer(chain)
		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "f", "portcullis.yaml", "Gate configuration file")
}
