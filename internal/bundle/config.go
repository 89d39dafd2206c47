package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Project root, all other paths are relative to it
	ProjectRoot string `yaml:"projectRoot"`
	// Entry points (e.g., "src/main.ts")
	EntryPoints []string `yaml:"entryPoints"`
	// Output bundle, CSS is extracted next to it with the same base name
	Outfile string `yaml:"outfile"`
	// Output format: iife, esm or cjs
	Format string `yaml:"format"`
	// Global variable name for iife bundles
	GlobalName string `yaml:"globalName"`
	// tsconfig used for compilation and alias derivation
	Tsconfig string `yaml:"tsconfig"`
	// Extensions tried when resolving aliased and bare imports
	Extensions []string `yaml:"extensions"`
	// Packages always resolved from the project root
	Dedupe []string `yaml:"dedupe"`
	// Package export conditions
	Conditions []string `yaml:"conditions"`
	// Command compiling .svelte components to JavaScript, the file path is appended
	ComponentCompiler []string `yaml:"componentCompiler"`
	// Global constant replacements
	Define map[string]string `yaml:"define"`
	// Path to metafile
	MetafilePath string `yaml:"metafile"`
	// Path to build manifest
	ManifestPath string `yaml:"manifest"`
	// Whether to minify output
	Minify bool `yaml:"minify"`
	// Whether to enable source maps
	SourceMap bool `yaml:"sourceMap"`
	// Whether to write .gz and .zst copies of the outputs
	Precompress bool `yaml:"precompress"`
	// Production build, recorded in the manifest. Set by the command mode.
	Production bool `yaml:"-"`
	// Prepend the live reload client to JavaScript outputs. Set by the command mode.
	LiveReload bool `yaml:"-"`
}

// DefaultConfig returns the configuration for a typical svelte + typescript app
func DefaultConfig() Config {
	return Config{
		ProjectRoot:  ".",
		EntryPoints:  []string{"src/main.ts"},
		Outfile:      "public/build/bundle.js",
		Format:       "iife",
		GlobalName:   "app",
		Tsconfig:     "tsconfig.json",
		Extensions:   []string{".ts", ".js", ".svelte"},
		Dedupe:       []string{"svelte"},
		Conditions:   []string{"svelte"},
		MetafilePath: "public/build/meta.json",
		ManifestPath: "public/build/manifest.json",
		SourceMap:    true,
	}
}

// LoadConfig reads a YAML file over the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.EntryPoints) == 0 {
		return ErrNoEntryPoints
	}
	if c.Outfile == "" {
		return fmt.Errorf("outfile is required")
	}
	format, err := c.format()
	if err != nil {
		return err
	}
	if format == api.FormatIIFE && c.GlobalName == "" {
		return fmt.Errorf("globalName is required for iife bundles")
	}
	return nil
}

// Path resolves p against the project root
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root(), p)
}

// Root returns the absolute project root
func (c Config) Root() string {
	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return c.ProjectRoot
	}
	return root
}

func (c Config) format() (api.Format, error) {
	switch c.Format {
	case "iife", "":
		return api.FormatIIFE, nil
	case "esm":
		return api.FormatESModule, nil
	case "cjs":
		return api.FormatCommonJS, nil
	default:
		return api.FormatDefault, fmt.Errorf("unsupported format %q", c.Format)
	}
}
