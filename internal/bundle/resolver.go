package bundle

import (
	"os"
	"path/filepath"
)

// FileResolver resolves an aliased path to a file on disk by trying the
// configured extensions, then an index file inside a directory.
type FileResolver struct {
	Extensions []string
}

func NewFileResolver(extensions ...string) *FileResolver {
	return &FileResolver{Extensions: extensions}
}

// Resolve returns the first existing candidate for path
func (r *FileResolver) Resolve(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}

	for _, ext := range r.Extensions {
		if candidate := path + ext; isFile(candidate) {
			return candidate, true
		}
	}

	for _, ext := range r.Extensions {
		if candidate := filepath.Join(path, "index"+ext); isFile(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
