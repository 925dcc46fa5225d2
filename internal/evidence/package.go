package evidence

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PackageManifest is the registry manifest shape spec.md §6 names:
// `<registry>/<dotted.name>/<version>/package.ax.json`. Integrity is
// carried separately in the sibling HASH file, never inside the
// manifest bytes that get hashed.
type PackageManifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Description          string            `json:"description"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	RequiredCapabilities []string          `json:"required_capabilities,omitempty"`
	ExposedModules       []string          `json:"exposed_modules"`
}

// ComputePackageHash implements spec.md §6's package HASH algorithm:
// sorted source file bytes (path-prefixed), then the manifest with its
// integrity field omitted, then sorted dependency hashes. pkgDir must
// contain a `src/` directory and a `package.ax.json` manifest;
// depHashes maps each dependency's name to its own already-computed
// HASH.
func ComputePackageHash(pkgDir string, depHashes map[string]string) (string, error) {
	h := sha256.New()

	srcDir := filepath.Join(pkgDir, "src")
	if _, err := os.Stat(srcDir); err == nil {
		var rels []string
		if err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(pkgDir, path)
			if err != nil {
				return err
			}
			rels = append(rels, filepath.ToSlash(rel))
			return nil
		}); err != nil {
			return "", fmt.Errorf("E_PACKAGE: walk %s: %w", srcDir, err)
		}
		sort.Strings(rels)
		for _, rel := range rels {
			content, err := os.ReadFile(filepath.Join(pkgDir, filepath.FromSlash(rel)))
			if err != nil {
				return "", fmt.Errorf("E_PACKAGE: read %s: %w", rel, err)
			}
			h.Write([]byte(rel))
			h.Write(content)
		}
	}

	manifestPath := filepath.Join(pkgDir, "package.ax.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		var m PackageManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return "", fmt.Errorf("E_PACKAGE: parse %s: %w", manifestPath, err)
		}
		canonical, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("E_PACKAGE: encode manifest: %w", err)
		}
		h.Write([]byte("MANIFEST:"))
		h.Write(canonical)
	}

	depNames := make([]string, 0, len(depHashes))
	for name := range depHashes {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)
	for _, name := range depNames {
		h.Write([]byte("DEP:"))
		h.Write([]byte(name))
		h.Write([]byte("="))
		h.Write([]byte(depHashes[name]))
	}

	return "sha256:" + fmt.Sprintf("%x", h.Sum(nil)), nil
}

// VerifyPackageHash recomputes pkgDir's content hash and compares it
// against the sibling HASH file, mirroring the original's verify_hash.
func VerifyPackageHash(pkgDir string, depHashes map[string]string) (bool, error) {
	hashFile := filepath.Join(pkgDir, "HASH")
	expected, err := os.ReadFile(hashFile)
	if err != nil {
		return false, fmt.Errorf("E_PACKAGE: HASH file not found: %w", err)
	}
	actual, err := ComputePackageHash(pkgDir, depHashes)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(expected)) == actual, nil
}
