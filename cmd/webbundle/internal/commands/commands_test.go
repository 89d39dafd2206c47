package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/webbundle/internal/bundle"
)

func newProject(t *testing.T) (string, *Globals) {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"tsconfig.json": `{
  // editor settings
  "compilerOptions": {
    "paths": {
      "@lib/*": ["stale/*"],
      "@lib/*": ["src/lib/*"],
    },
  },
}`,
		"src/main.ts":      "import { greet } from '@lib/greet';\nexport const message = greet('world');\n",
		"src/lib/greet.ts": "export function greet(name: string): string { return `hello ${name}`; }\n",
	}
	for name, contents := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	}

	config := filepath.Join(root, "webbundle.yaml")
	require.NoError(t, os.WriteFile(config, []byte("projectRoot: "+root+"\n"), 0600))

	return root, &Globals{Config: config, Version: "test"}
}

func TestAliasesCmd_JSON(t *testing.T) {
	root, globals := newProject(t)

	var buf bytes.Buffer
	cmd := &AliasesCmd{JSON: true, out: &buf}
	require.NoError(t, cmd.Run(context.Background(), globals))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, []map[string]string{
		{"find": "@lib", "replacement": filepath.Join(root, "src/lib")},
	}, got)
}

func TestAliasesCmd_table(t *testing.T) {
	root, globals := newProject(t)

	var buf bytes.Buffer
	cmd := &AliasesCmd{out: &buf}
	require.NoError(t, cmd.Run(context.Background(), globals))

	require.Contains(t, buf.String(), "FIND")
	require.Contains(t, buf.String(), "@lib")
	require.Contains(t, buf.String(), filepath.Join(root, "src/lib"))
	require.NotContains(t, buf.String(), "stale")
}

func TestAliasesCmd_missingTsconfig(t *testing.T) {
	root, globals := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "tsconfig.json")))

	cmd := &AliasesCmd{out: &bytes.Buffer{}}
	err := cmd.Run(context.Background(), globals)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCmd(t *testing.T) {
	root, globals := newProject(t)

	cmd := &BuildCmd{}
	require.NoError(t, cmd.Run(context.Background(), globals))

	bundleJS, err := os.ReadFile(filepath.Join(root, "public/build/bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(bundleJS), "hello")

	manifest, err := bundle.ReadManifest(filepath.Join(root, "public/build/manifest.json"))
	require.NoError(t, err)
	require.True(t, manifest.Production)
	require.NotEmpty(t, manifest.Files)
	require.Equal(t, []string{"public/build/bundle.js"}, manifest.Entries["src/main.ts"])
	require.NotContains(t, string(bundleJS), "WebSocket")
}

func TestBuildCmd_noMinify(t *testing.T) {
	root, globals := newProject(t)

	cmd := &BuildCmd{NoMinify: true}
	require.NoError(t, cmd.Run(context.Background(), globals))

	bundleJS, err := os.ReadFile(filepath.Join(root, "public/build/bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(bundleJS), "function greet(name)")

	manifest, err := bundle.ReadManifest(filepath.Join(root, "public/build/manifest.json"))
	require.NoError(t, err)
	require.True(t, manifest.Production)
}

func TestGlobals_bundleConfig(t *testing.T) {
	cfg, err := (&Globals{}).bundleConfig()
	require.NoError(t, err)
	require.Equal(t, bundle.DefaultConfig(), cfg)

	_, err = (&Globals{Config: filepath.Join(t.TempDir(), "missing.yaml")}).bundleConfig()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestAliasesCmd_noPaths(t *testing.T) {
	root, globals := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tsconfig.json"), []byte(`{"compilerOptions": {}}`), 0600))

	var buf bytes.Buffer
	cmd := &AliasesCmd{out: &buf}
	require.NoError(t, cmd.Run(context.Background(), globals))
	require.Contains(t, buf.String(), "No aliases found.")

	buf.Reset()
	cmd.JSON = true
	require.NoError(t, cmd.Run(context.Background(), globals))
	require.JSONEq(t, `[]`, buf.String())
}
