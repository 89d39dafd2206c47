package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/devserver"
	"github.com/wolfeidau/webbundle/internal/logger"
)

// ServeFlags configure the development server
type ServeFlags struct {
	Listen          string   `help:"Address the dev server listens on" default:"127.0.0.1:5000" env:"WEBBUNDLE_LISTEN"`
	Public          string   `help:"Directory served as the site root" default:"public" env:"WEBBUNDLE_PUBLIC"`
	CORSOrigins     []string `help:"Allowed CORS origins" env:"WEBBUNDLE_CORS_ORIGINS"`
	Start           string   `help:"Command started once after the first successful build" env:"WEBBUNDLE_START"`
	NoTsconfigWatch bool     `help:"Do not reload aliases when the tsconfig changes"`
}

type DevCmd struct {
	Serve ServeFlags `embed:""`
}

func (c *DevCmd) Run(ctx context.Context, globals *Globals) error {
	return runDev(ctx, globals, c.Serve)
}

func runDev(ctx context.Context, globals *Globals, flags ServeFlags) error {
	log := logger.Setup(globals.Debug)
	defer globals.setupTelemetry(ctx, log)()

	cfg, err := globals.bundleConfig()
	if err != nil {
		return err
	}
	cfg.Production = false
	cfg.Minify = false
	cfg.Precompress = false
	cfg.LiveReload = true

	pipeline, err := bundle.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bundle pipeline: %w", err)
	}

	srv := devserver.New(devserver.Config{
		PublicDir:     cfg.Path(flags.Public),
		CORSOrigins:   flags.CORSOrigins,
		StartCommand:  flags.Start,
		WatchTsconfig: !flags.NoTsconfigWatch,
	}, pipeline, log)

	if err := srv.Start(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	httpServer := configureHTTPServer(flags.Listen, srv.Handler())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+flags.Listen).Msg("Dev server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info().Msg("Shutting down dev server")
	}

	// disposing the esbuild context ends proxied event streams
	if closeErr := srv.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to stop bundle server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("Failed to shutdown dev server")
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dev server failed: %w", err)
	}
	return nil
}
