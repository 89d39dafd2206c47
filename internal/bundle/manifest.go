package bundle

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

// Manifest records the files produced by a build with their checksums
type Manifest struct {
	BuildID    string         `json:"buildId"`
	CreatedAt  time.Time      `json:"createdAt"`
	Production bool           `json:"production"`
	Files      []ManifestFile `json:"files"`
	// Scripts each entry point loads, in order
	Entries map[string][]string `json:"entries,omitempty"`
}

type ManifestFile struct {
	Path        string   `json:"path"`
	Bytes       int64    `json:"bytes"`
	CRC64       string   `json:"crc64"`
	Fingerprint string   `json:"fingerprint"`
	Compressed  []string `json:"compressed,omitempty"`
}

// NewManifest checksums each output, given relative to root. compressed maps
// an output to its precompressed siblings.
func NewManifest(root string, outputs []string, compressed map[string][]string, production bool) (*Manifest, error) {
	m := &Manifest{
		BuildID:    uuid.Must(uuid.NewV7()).String(),
		CreatedAt:  time.Now().UTC(),
		Production: production,
		Files:      make([]ManifestFile, 0, len(outputs)),
	}

	for _, output := range outputs {
		size, crc, fingerprint, err := digestFile(filepath.Join(root, output))
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s: %w", output, err)
		}

		m.Files = append(m.Files, ManifestFile{
			Path:        filepath.ToSlash(output),
			Bytes:       size,
			CRC64:       fmt.Sprintf("%016x", crc),
			Fingerprint: fingerprint,
			Compressed:  compressed[output],
		})
	}

	return m, nil
}

// Write stores the manifest as indented JSON
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ReadManifest loads a manifest written by Write
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// digestFile computes the CRC64-NVME checksum and a base58 SHA-256
// fingerprint in one pass
func digestFile(path string) (int64, uint64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	crc := crc64nvme.New()
	sum := sha256.New()

	n, err := io.Copy(io.MultiWriter(crc, sum), f)
	if err != nil {
		return 0, 0, "", err
	}

	return n, crc.Sum64(), base58.Encode(sum.Sum(nil)), nil
}
