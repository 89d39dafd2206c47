package devserver

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/telemetry"
	"github.com/wolfeidau/webbundle/internal/tsconfig"
)

const reloadMaxTries = 5

// tsconfigWatcher re-derives aliases when the tsconfig is written. The parent
// directory is watched so editors that save by rename are noticed.
type tsconfigWatcher struct {
	path     string
	read     func() ([]bundle.Alias, error)
	apply    func([]bundle.Alias) error
	watcher  *fsnotify.Watcher
	interval time.Duration
}

func newTsconfigWatcher(cfg bundle.Config, apply func([]bundle.Alias) error) (*tsconfigWatcher, error) {
	path, root := cfg.Path(cfg.Tsconfig), cfg.Root()
	resolver := bundle.NewFileResolver(cfg.Extensions...)

	return watchTsconfig(path, func() ([]bundle.Alias, error) {
		return tsconfig.ReadPaths(path, root, resolver)
	}, apply)
}

func watchTsconfig(path string, read func() ([]bundle.Alias, error), apply func([]bundle.Alias) error) (*tsconfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	return &tsconfigWatcher{
		path:     filepath.Clean(path),
		read:     read,
		apply:    apply,
		watcher:  w,
		interval: 100 * time.Millisecond,
	}, nil
}

func (t *tsconfigWatcher) run(ctx context.Context) {
	defer func() { _ = t.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != t.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("tsconfig changed")
			if err := t.reload(ctx); err != nil {
				log.Error().Err(err).Str("file", t.path).Msg("Failed to reload aliases, keeping previous build")
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Error watching tsconfig")
		}
	}
}

// reload reads the tsconfig, retrying while the file is missing or being
// replaced. Syntax errors are not retried.
func (t *tsconfigWatcher) reload(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.interval

	aliases, err := backoff.Retry(ctx, func() ([]bundle.Alias, error) {
		aliases, err := t.read()
		var parseErr *tsconfig.ParseError
		if errors.As(err, &parseErr) {
			return nil, backoff.Permanent(err)
		}
		return aliases, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(reloadMaxTries))
	if err != nil {
		return err
	}

	telemetry.GetMetrics().AliasReloadsTotal.Add(ctx, 1)
	return t.apply(aliases)
}

// publicWatcher reports changes under the public directory once per burst of
// events. The build output directory is left to esbuild.
type publicWatcher struct {
	skip     string
	notify   func(path string)
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

func newPublicWatcher(dir, skip string, notify func(path string)) (*publicWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	p := &publicWatcher{
		skip:     filepath.Clean(skip),
		notify:   notify,
		watcher:  w,
		debounce: 100 * time.Millisecond,
	}
	if err := p.add(filepath.Clean(dir)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return p, nil
}

// add watches dir and its subdirectories, fsnotify is not recursive
func (p *publicWatcher) add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == p.skip {
			return filepath.SkipDir
		}
		return p.watcher.Add(path)
	})
}

func (p *publicWatcher) run(ctx context.Context) {
	defer func() { _ = p.watcher.Close() }()

	timer := time.NewTimer(p.debounce)
	timer.Stop()
	var changed string

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || within(p.skip, event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := p.add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch directory")
					}
				}
			}
			changed = event.Name
			timer.Reset(p.debounce)
		case <-timer.C:
			p.notify(changed)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Error watching public directory")
		}
	}
}

// within reports whether path is dir or inside it
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
