package devserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/tsconfig"
)

func TestTsconfigWatcher_reloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tsconfig.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"compilerOptions":{"paths":{"@a/*":["a/*"]}}}`), 0600))

	applied := make(chan []bundle.Alias, 4)
	w, err := watchTsconfig(path, func() ([]bundle.Alias, error) {
		return tsconfig.ReadPaths(path, dir, bundle.NewFileResolver(".ts"))
	}, func(aliases []bundle.Alias) error {
		applied <- aliases
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0600))
	require.NoError(t, os.WriteFile(path, []byte(`{
		"compilerOptions": {
			"paths": {
				"@a/*": ["a/*"],
				"@b/*": ["b/*"], // added
			},
		},
	}`), 0600))

	select {
	case aliases := <-applied:
		require.Len(t, aliases, 2)
		require.Equal(t, "@b", aliases[1].Find)
		require.Equal(t, filepath.Join(dir, "b"), aliases[1].Replacement)
	case <-time.After(5 * time.Second):
		t.Fatal("aliases were not reloaded")
	}
}

func TestTsconfigWatcher_reload(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "read errors are retried",
			failures:  2,
			err:       &tsconfig.ReadError{Path: "tsconfig.json", Err: os.ErrNotExist},
			wantCalls: 3,
		},
		{
			name:      "parse errors are permanent",
			failures:  1,
			err:       &tsconfig.ParseError{Path: "tsconfig.json", Err: errors.New("bad")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "gives up after max tries",
			failures:  reloadMaxTries + 1,
			err:       &tsconfig.ReadError{Path: "tsconfig.json", Err: os.ErrNotExist},
			wantCalls: reloadMaxTries,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			appliedCalls := 0

			w := &tsconfigWatcher{
				interval: time.Millisecond,
				read: func() ([]bundle.Alias, error) {
					calls++
					if calls <= tt.failures {
						return nil, tt.err
					}
					return []bundle.Alias{{Find: "@a", Replacement: "/proj/a"}}, nil
				},
				apply: func([]bundle.Alias) error {
					appliedCalls++
					return nil
				},
			}

			err := w.reload(context.Background())
			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.ErrorIs(t, err, tt.err)
				require.Zero(t, appliedCalls)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 1, appliedCalls)
		})
	}
}

func TestPublicWatcher(t *testing.T) {
	dir := t.TempDir()
	build := filepath.Join(dir, "build")
	require.NoError(t, os.MkdirAll(build, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "img"), 0o755))

	changed := make(chan string, 4)
	w, err := newPublicWatcher(dir, build, func(path string) {
		changed <- path
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	// build output is written by esbuild and ignored here
	require.NoError(t, os.WriteFile(filepath.Join(build, "bundle.js"), []byte("1"), 0600))
	select {
	case path := <-changed:
		t.Fatalf("unexpected report for %s", path)
	case <-time.After(300 * time.Millisecond):
	}

	for _, name := range []string{"index.html", filepath.Join("img", "logo.svg")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("<!-- changed -->"), 0600))

		select {
		case got := <-changed:
			require.Equal(t, path, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("change to %s was not reported", name)
		}
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{path: "/proj/public/build", expected: true},
		{path: "/proj/public/build/bundle.js", expected: true},
		{path: "/proj/public/builder.js", expected: false},
		{path: "/proj/public/index.html", expected: false},
		{path: "/proj", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, within("/proj/public/build", tt.path))
		})
	}
}
