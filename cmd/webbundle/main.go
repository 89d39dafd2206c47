package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/webbundle/cmd/webbundle/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool   `help:"Enable debug mode." env:"WEBBUNDLE_DEBUG"`
		Config  string `help:"YAML file overriding the bundle configuration" type:"existingfile" env:"WEBBUNDLE_CONFIG"`
		Tracing bool   `help:"Export traces and metrics over OTLP" env:"WEBBUNDLE_TRACING"`
		Version kong.VersionFlag
		Build   commands.BuildCmd   `cmd:"" default:"withargs" help:"Bundle the app (production unless --watch)"`
		Dev     commands.DevCmd     `cmd:"" help:"Watch, rebuild and serve the app with live reload"`
		Aliases commands.AliasesCmd `cmd:"" help:"Print module aliases derived from tsconfig paths"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Config:  cli.Config,
		Tracing: cli.Tracing,
		Version: version,
	})
	cmd.FatalIfErrorf(err)
}
