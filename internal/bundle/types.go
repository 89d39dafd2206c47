package bundle

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/wolfeidau/webbundle/internal/tsconfig"
)

// Metafile is the subset of the esbuild metafile the pipeline reads
type Metafile struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes   int          `json:"bytes"`
	Imports []ImportInfo `json:"imports"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle,omitempty"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// Scripts returns the output built for entryPoint followed by the chunks it
// imports, depth first. External imports are left out.
func (m *Metafile) Scripts(entryPoint string) ([]string, error) {
	var output string
	for path, info := range m.Outputs {
		if info.EntryPoint == entryPoint && filepath.Ext(path) != ".css" {
			output = path
			break
		}
	}
	if output == "" {
		return nil, ErrEntryPointNotFound
	}

	scripts := []string{}
	seen := map[string]bool{}

	var walk func(path string)
	walk = func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		scripts = append(scripts, path)

		for _, imp := range m.Outputs[path].Imports {
			if !imp.External {
				walk(imp.Path)
			}
		}
	}
	walk(output)

	return scripts, nil
}

// Alias is a tsconfig path mapping resolved through a FileResolver
type Alias = tsconfig.Alias[*FileResolver]

// Result summarises a completed build
type Result struct {
	Outputs  []string
	Warnings int
	Duration time.Duration
	Manifest *Manifest
}

// Pipeline manages the bundle build and its metadata
type Pipeline struct {
	config   Config
	aliases  []Alias
	metadata *Metafile
	mu       sync.RWMutex
}

// New creates a pipeline and derives aliases from the configured tsconfig
func New(config Config) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		config: config,
	}

	aliases, err := p.ReadAliases()
	if err != nil {
		return nil, err
	}
	p.aliases = aliases

	return p, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// ReadAliases derives aliases from the tsconfig without applying them
func (p *Pipeline) ReadAliases() ([]Alias, error) {
	resolver := NewFileResolver(p.config.Extensions...)
	return tsconfig.ReadPaths(p.config.Path(p.config.Tsconfig), p.config.Root(), resolver)
}

// SetAliases replaces the aliases used by subsequent builds
func (p *Pipeline) SetAliases(aliases []Alias) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aliases = aliases
}

// Aliases returns a copy of the current aliases
func (p *Pipeline) Aliases() []Alias {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Alias(nil), p.aliases...)
}
