package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mismatch describes the first file whose recomputed checksum
// disagrees with the manifest.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("E_EVIDENCE: checksum mismatch for %s: manifest has %s, disk has %s", m.Path, m.Expected, m.Actual)
}

// Verify reads <dir>/manifest.json, recomputes each listed file's
// SHA-256, and reports the first mismatch it finds (spec.md §4.8).
// A missing file counts as a mismatch against the empty-string
// checksum. Verify walks Files in the manifest's own order, which
// WriteBundle sorts by path, so the first reported mismatch is
// deterministic.
func Verify(dir string) (*Manifest, *Mismatch, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, fmt.Errorf("E_EVIDENCE: read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, nil, fmt.Errorf("E_EVIDENCE: parse manifest: %w", err)
	}

	for _, fc := range manifest.Files {
		content, err := os.ReadFile(filepath.Join(dir, fc.Path))
		if err != nil {
			return &manifest, &Mismatch{Path: fc.Path, Expected: fc.SHA256, Actual: ""}, nil
		}
		actual := sha256Hex(content)
		if actual != fc.SHA256 {
			return &manifest, &Mismatch{Path: fc.Path, Expected: fc.SHA256, Actual: actual}, nil
		}
	}
	return &manifest, nil, nil
}
