package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/logger"
)

type BuildCmd struct {
	Watch    bool       `help:"Rebuild on change and serve the app instead of a single production build" env:"WEBBUNDLE_WATCH"`
	NoMinify bool       `help:"Skip minification of production builds"`
	Serve    ServeFlags `embed:""`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	if c.Watch {
		return runDev(ctx, globals, c.Serve)
	}

	log := logger.Setup(globals.Debug)
	defer globals.setupTelemetry(ctx, log)()

	cfg, err := globals.bundleConfig()
	if err != nil {
		return err
	}
	cfg.Production = true
	cfg.Minify = !c.NoMinify
	cfg.Precompress = true

	pipeline, err := bundle.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bundle pipeline: %w", err)
	}

	res, err := pipeline.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	for entry, scripts := range res.Manifest.Entries {
		log.Info().Str("entrypoint", entry).Strs("scripts", scripts).Msg("Entry point scripts")
	}

	log.Info().
		Int("outputs", len(res.Outputs)).
		Int("warnings", res.Warnings).
		Dur("duration", res.Duration).
		Str("build_id", res.Manifest.BuildID).
		Msg("Build complete")

	return nil
}
