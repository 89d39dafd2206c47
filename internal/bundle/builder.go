package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/webbundle/internal/telemetry"
)

var tracer = otel.Tracer("github.com/wolfeidau/webbundle/internal/bundle")

// Options returns the esbuild options for the current configuration and aliases
func (p *Pipeline) Options() (api.BuildOptions, error) {
	format, err := p.config.format()
	if err != nil {
		return api.BuildOptions{}, err
	}

	entryPoints := make([]string, 0, len(p.config.EntryPoints))
	for _, entry := range p.config.EntryPoints {
		entryPoints = append(entryPoints, p.config.Path(entry))
	}

	plugins := []api.Plugin{
		aliasPlugin(p.Aliases()),
		dedupePlugin(p.config.Root(), p.config.Dedupe),
	}
	if len(p.config.ComponentCompiler) > 0 {
		plugins = append(plugins, componentPlugin(p.config.ComponentCompiler))
	}

	return api.BuildOptions{
		AbsWorkingDir:     p.config.Root(),
		EntryPoints:       entryPoints,
		Outfile:           p.config.Path(p.config.Outfile),
		Bundle:            true,
		Write:             true,
		Format:            format,
		GlobalName:        cond(format == api.FormatIIFE, p.config.GlobalName, ""),
		Platform:          api.PlatformBrowser,
		Tsconfig:          p.config.Path(p.config.Tsconfig),
		ResolveExtensions: p.config.Extensions,
		MainFields:        []string{"svelte", "browser", "module", "main"},
		Conditions:        p.config.Conditions,
		Define:            p.config.Define,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		SourcesContent:    cond(p.config.Minify, api.SourcesContentExclude, api.SourcesContentInclude),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
		Banner:            cond(p.config.LiveReload, map[string]string{"js": LiveReloadClient}, nil),
	}, nil
}

// Build runs esbuild once with the configured settings and loads metadata
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "bundle.Build")
	defer span.End()

	opts, err := p.Options()
	if err != nil {
		return nil, err
	}

	log.Info().Strs("entrypoints", opts.EntryPoints).Str("outfile", opts.Outfile).Msg("Building bundle")

	started := time.Now()
	result := api.Build(opts)

	res, err := p.complete(ctx, &result, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("bundle.outputs", len(res.Outputs)))
	return res, nil
}

// complete reports messages from a finished build, then writes the metafile,
// manifest and compressed copies of the outputs.
func (p *Pipeline) complete(ctx context.Context, result *api.BuildResult, elapsed time.Duration) (*Result, error) {
	metrics := telemetry.GetMetrics()
	mode := metric.WithAttributes(attribute.Bool("production", p.config.Production))

	metrics.BuildsTotal.Add(ctx, 1, mode)
	metrics.BuildDuration.Record(ctx, float64(elapsed.Milliseconds()), mode)

	warnings := 0
	for _, msg := range result.Warnings {
		if unanchoredPathWarning(msg) {
			continue
		}
		warnings++
		log.Warn().Str("warning", msg.Text).Str("file", location(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("file", location(msg)).Msg("Build error")
		}
		metrics.BuildErrorsTotal.Add(ctx, 1, mode)
		return nil, fmt.Errorf("%w: %d errors", ErrBuildFailed, len(result.Errors))
	}

	// Write metafile
	if p.config.MetafilePath != "" {
		metafilePath := p.config.Path(p.config.MetafilePath)
		if err := os.MkdirAll(filepath.Dir(metafilePath), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(metafilePath, []byte(result.Metafile), 0600); err != nil {
			return nil, err
		}
	}

	// Parse and cache metadata
	var metadata Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	outputs := make([]string, 0, len(metadata.Outputs))
	for outputPath := range metadata.Outputs {
		outputs = append(outputs, outputPath)
	}
	sort.Strings(outputs)

	for _, output := range outputs {
		log.Info().Str("file", output).Int("bytes", metadata.Outputs[output].Bytes).Msg("Built file")
	}

	entries, err := p.entryScripts(&metadata)
	if err != nil {
		return nil, err
	}

	manifest, err := p.writeManifest(outputs, entries)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.mu.Unlock()

	return &Result{
		Outputs:  outputs,
		Warnings: warnings,
		Duration: elapsed,
		Manifest: manifest,
	}, nil
}

// entryScripts maps each configured entry point to the scripts it loads
func (p *Pipeline) entryScripts(metadata *Metafile) (map[string][]string, error) {
	root := p.config.Root()
	entries := make(map[string][]string, len(p.config.EntryPoints))
	for _, entry := range p.config.EntryPoints {
		rel, err := filepath.Rel(root, p.config.Path(entry))
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		scripts, err := metadata.Scripts(rel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
		entries[rel] = scripts
	}
	return entries, nil
}

func (p *Pipeline) writeManifest(outputs []string, entries map[string][]string) (*Manifest, error) {
	root := p.config.Root()
	compressed := map[string][]string{}

	if p.config.Precompress {
		for _, output := range outputs {
			files, err := Precompress(filepath.Join(root, output))
			if err != nil {
				return nil, fmt.Errorf("failed to precompress %s: %w", output, err)
			}
			for _, file := range files {
				rel, err := filepath.Rel(root, file)
				if err != nil {
					return nil, err
				}
				compressed[output] = append(compressed[output], filepath.ToSlash(rel))
			}
		}
	}

	manifest, err := NewManifest(root, outputs, compressed, p.config.Production)
	if err != nil {
		return nil, err
	}
	manifest.Entries = entries

	if p.config.ManifestPath != "" {
		if err := manifest.Write(p.config.Path(p.config.ManifestPath)); err != nil {
			return nil, err
		}
	}

	return manifest, nil
}

// Metadata returns the metafile of the last successful build
func (p *Pipeline) Metadata() (*Metafile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, ErrNotBuilt
	}
	return p.metadata, nil
}

// unanchoredPathWarning reports esbuild's complaint about tsconfig paths
// without a baseUrl. esbuild skips those entries and the alias plugin
// resolves them instead.
func unanchoredPathWarning(msg api.Message) bool {
	return strings.HasPrefix(msg.Text, "Non-relative path ") &&
		strings.Contains(msg.Text, `is not allowed when "baseUrl" is not set`)
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
