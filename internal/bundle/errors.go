package bundle

import "errors"

var (
	// ErrNoEntryPoints indicates the configuration names no entry points
	ErrNoEntryPoints = errors.New("no entry points found")
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNotBuilt indicates metadata was requested before a successful build
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
	// ErrEntryPointNotFound indicates the entry point has no output in the metafile
	ErrEntryPointNotFound = errors.New("entrypoint not found in metadata")
)
