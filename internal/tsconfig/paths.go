package tsconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

const wildcardSuffix = "/*"

// Alias maps an import prefix onto a directory on disk.
type Alias[R any] struct {
	Find           string `json:"find"`
	Replacement    string `json:"replacement"`
	CustomResolver R      `json:"-"`
}

// Parse parses tsconfig content, accepting comments and trailing commas.
func Parse(data []byte) (hujson.Value, error) {
	v, err := hujson.Parse(data)
	if err != nil {
		return hujson.Value{}, &ParseError{Err: err}
	}
	return v, nil
}

// ReadPaths reads the tsconfig at configPath and derives aliases from its
// compilerOptions.paths table.
//
// Only the first target of each path mapping is used.
func ReadPaths[R any](configPath, projectRoot string, resolver R) ([]Alias[R], error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &ReadError{Path: configPath, Err: err}
	}

	doc, err := hujson.Parse(data)
	if err != nil {
		return nil, &ParseError{Path: configPath, Err: err}
	}

	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	return DerivePaths(doc, root, resolver), nil
}

// DerivePaths walks compilerOptions.paths in document order and returns one
// alias per distinct pattern, first occurrence wins. A key repeated verbatim
// keeps its first position but takes the last value, as JSON object decoding
// does. A document without the table yields an empty slice.
func DerivePaths[R any](doc hujson.Value, projectRoot string, resolver R) []Alias[R] {
	computed := []Alias[R]{}

	paths := member(doc, "compilerOptions", "paths")
	if paths == nil {
		return computed
	}

	for _, m := range members(paths) {
		entry, ok := firstString(m.value)
		if !ok {
			continue
		}

		find := strings.TrimSuffix(m.name, wildcardSuffix)
		target := strings.TrimSuffix(entry, wildcardSuffix)

		if containsFind(computed, find) {
			continue
		}

		computed = append(computed, Alias[R]{
			Find:           find,
			Replacement:    resolvePath(projectRoot, target),
			CustomResolver: resolver,
		})
	}

	return computed
}

type namedValue struct {
	name  string
	value hujson.Value
}

// members returns the string-named members of obj in first-seen order. A
// repeated name takes the value of its last occurrence.
func members(obj *hujson.Object) []namedValue {
	index := make(map[string]int, len(obj.Members))
	out := make([]namedValue, 0, len(obj.Members))
	for _, m := range obj.Members {
		name, ok := stringValue(m.Name)
		if !ok {
			continue
		}
		if i, seen := index[name]; seen {
			out[i].value = m.Value
			continue
		}
		index[name] = len(out)
		out = append(out, namedValue{name: name, value: m.Value})
	}
	return out
}

// member descends through nested objects by name, returning nil when any
// level is missing or is not an object. The last of repeated names is used.
func member(v hujson.Value, names ...string) *hujson.Object {
	cur := v
	for _, name := range names {
		obj, ok := cur.Value.(*hujson.Object)
		if !ok {
			return nil
		}
		found := false
		for _, m := range obj.Members {
			if k, ok := stringValue(m.Name); ok && k == name {
				cur = m.Value
				found = true
			}
		}
		if !found {
			return nil
		}
	}
	obj, ok := cur.Value.(*hujson.Object)
	if !ok {
		return nil
	}
	return obj
}

func firstString(v hujson.Value) (string, bool) {
	arr, ok := v.Value.(*hujson.Array)
	if !ok || len(arr.Elements) == 0 {
		return "", false
	}
	return stringValue(arr.Elements[0])
}

func stringValue(v hujson.Value) (string, bool) {
	lit, ok := v.Value.(hujson.Literal)
	if !ok || lit.Kind() != '"' {
		return "", false
	}
	return lit.String(), true
}

func containsFind[R any](aliases []Alias[R], find string) bool {
	for _, a := range aliases {
		if a.Find == find {
			return true
		}
	}
	return false
}

// resolvePath joins relative targets onto root and cleans absolute ones.
func resolvePath(root, target string) string {
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(root, target)
}
