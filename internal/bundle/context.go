package bundle

import (
	"context"
	"errors"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// BuildFunc is called after every rebuild of an incremental context
type BuildFunc func(res *Result, err error)

// Context creates an incremental esbuild context for watch mode. onBuild is
// called after each build once the outputs have been processed.
func (p *Pipeline) Context(onBuild BuildFunc) (api.BuildContext, error) {
	opts, err := p.Options()
	if err != nil {
		return nil, err
	}

	var started time.Time

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "build-hooks",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				log.Debug().Msg("Rebuild started")
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				res, err := p.complete(context.Background(), result, time.Since(started))
				if onBuild != nil {
					onBuild(res, err)
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		errs := make([]error, 0, len(ctxErr.Errors))
		for _, msg := range ctxErr.Errors {
			errs = append(errs, errors.New(msg.Text))
		}
		return nil, errors.Join(errs...)
	}

	return buildCtx, nil
}
