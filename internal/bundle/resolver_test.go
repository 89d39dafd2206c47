package bundle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"lib/exact.js":            "",
		"lib/greet.ts":            "",
		"lib/greet.js":            "",
		"lib/button.svelte":       "",
		"lib/widgets/index.ts":    "",
		"lib/only-index/index.js": "",
	})

	r := NewFileResolver(".ts", ".js", ".svelte")

	tests := []struct {
		name     string
		path     string
		expected string
		found    bool
	}{
		{
			name:     "exact file",
			path:     "lib/exact.js",
			expected: "lib/exact.js",
			found:    true,
		},
		{
			name:     "extension order is respected",
			path:     "lib/greet",
			expected: "lib/greet.ts",
			found:    true,
		},
		{
			name:     "component extension",
			path:     "lib/button",
			expected: "lib/button.svelte",
			found:    true,
		},
		{
			name:     "directory index",
			path:     "lib/widgets",
			expected: "lib/widgets/index.ts",
			found:    true,
		},
		{
			name:     "directory index with later extension",
			path:     "lib/only-index",
			expected: "lib/only-index/index.js",
			found:    true,
		},
		{
			name:  "missing",
			path:  "lib/missing",
			found: false,
		},
		{
			name:  "directory without index",
			path:  "lib",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, ok := r.Resolve(filepath.Join(root, tt.path))
			require.Equal(t, tt.found, ok)
			if tt.found {
				require.Equal(t, filepath.Join(root, tt.expected), resolved)
			}
		})
	}
}
