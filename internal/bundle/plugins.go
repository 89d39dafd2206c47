package bundle

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// resolving marks resolve calls made from inside a plugin so the same
// plugin does not handle them a second time.
type resolving struct{ plugin string }

// aliasPlugin rewrites imports matching an alias prefix onto the alias
// replacement directory. An import matches when it equals the prefix or
// continues with a slash.
func aliasPlugin(aliases []Alias) api.Plugin {
	const name = "tsconfig-paths"
	marker := &resolving{plugin: name}

	return api.Plugin{
		Name: name,
		Setup: func(build api.PluginBuild) {
			for _, alias := range aliases {
				if alias.Find == "" {
					continue
				}

				build.OnResolve(api.OnResolveOptions{
					Filter: "^" + regexp.QuoteMeta(alias.Find) + "(/.*)?$",
				}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.PluginData == marker {
						return api.OnResolveResult{}, nil
					}

					target := alias.Replacement + strings.TrimPrefix(args.Path, alias.Find)

					if alias.CustomResolver != nil {
						if resolved, ok := alias.CustomResolver.Resolve(target); ok {
							return api.OnResolveResult{Path: resolved}, nil
						}
					}

					return resolveWith(build, target, args, args.ResolveDir, marker), nil
				})
			}
		},
	}
}

// dedupePlugin resolves the named packages from the project root so a single
// copy is bundled regardless of the importer's location.
func dedupePlugin(root string, packages []string) api.Plugin {
	const name = "dedupe"
	marker := &resolving{plugin: name}

	quoted := make([]string, 0, len(packages))
	for _, pkg := range packages {
		quoted = append(quoted, regexp.QuoteMeta(pkg))
	}

	return api.Plugin{
		Name: name,
		Setup: func(build api.PluginBuild) {
			if len(quoted) == 0 {
				return
			}

			build.OnResolve(api.OnResolveOptions{
				Filter: "^(" + strings.Join(quoted, "|") + ")(/.*)?$",
			}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.PluginData == marker {
					return api.OnResolveResult{}, nil
				}
				return resolveWith(build, args.Path, args, root, marker), nil
			})
		},
	}
}

func resolveWith(build api.PluginBuild, path string, args api.OnResolveArgs, resolveDir string, marker *resolving) api.OnResolveResult {
	res := build.Resolve(path, api.ResolveOptions{
		Importer:   args.Importer,
		Kind:       args.Kind,
		ResolveDir: resolveDir,
		PluginData: marker,
	})
	if len(res.Errors) > 0 {
		return api.OnResolveResult{Errors: res.Errors, Warnings: res.Warnings}
	}

	return api.OnResolveResult{
		Path:      res.Path,
		External:  res.External,
		Namespace: res.Namespace,
		Suffix:    res.Suffix,
		Warnings:  res.Warnings,
	}
}

// componentPlugin loads .svelte files through an external compiler command.
// The command receives the component path as its last argument and writes
// JavaScript to stdout.
func componentPlugin(command []string) api.Plugin {
	return api.Plugin{
		Name: "component-compiler",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{
				Filter: `\.svelte$`,
			}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents, err := compileComponent(command, args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				return api.OnLoadResult{
					Contents:   &contents,
					Loader:     api.LoaderJS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

func compileComponent(command []string, path string) (string, error) {
	if len(command) == 0 {
		return "", fmt.Errorf("no component compiler configured for %s", path)
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.Command(command[0], append(command[1:], path)...) // #nosec G204 - command comes from local build config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug().Str("component", path).Str("stderr", stderr.String()).Msg("Component compiler failed")
		return "", fmt.Errorf("failed to compile %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
