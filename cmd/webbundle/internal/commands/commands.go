package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Config  string
	Tracing bool
	Version string
}

// bundleConfig returns the defaults, overlaid with the --config file when set
func (g *Globals) bundleConfig() (bundle.Config, error) {
	if g.Config == "" {
		return bundle.DefaultConfig(), nil
	}
	return bundle.LoadConfig(g.Config)
}

// setupTelemetry initialises OTLP exporters when tracing is enabled and
// returns a function flushing them
func (g *Globals) setupTelemetry(ctx context.Context, log zerolog.Logger) func() {
	if !g.Tracing {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "webbundle", g.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
