package evidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSamplePackage(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.ax.json"), []byte(`{"ok":true}`), 0o644))
	manifest := `{"name":"demo.pkg","version":"1.0.0","description":"demo","exposed_modules":["lib"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.ax.json"), []byte(manifest), 0o644))
}

func TestComputePackageHashIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeSamplePackage(t, dir)

	h1, err := ComputePackageHash(dir, map[string]string{"other.pkg": "sha256:aaaa"})
	require.NoError(t, err)
	h2, err := ComputePackageHash(dir, map[string]string{"other.pkg": "sha256:aaaa"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Contains(t, h1, "sha256:")
}

func TestComputePackageHashChangesWithSourceContent(t *testing.T) {
	dir := t.TempDir()
	writeSamplePackage(t, dir)
	before, err := ComputePackageHash(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.ax.json"), []byte(`{"ok":false}`), 0o644))
	after, err := ComputePackageHash(dir, nil)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestVerifyPackageHashRoundtrips(t *testing.T) {
	dir := t.TempDir()
	writeSamplePackage(t, dir)

	hash, err := ComputePackageHash(dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HASH"), []byte(hash), 0o644))

	ok, err := VerifyPackageHash(dir, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPackageHashDetectsTamper(t *testing.T) {
	dir := t.TempDir()
	writeSamplePackage(t, dir)

	hash, err := ComputePackageHash(dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HASH"), []byte(hash), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.ax.json"), []byte(`{"ok":"tampered"}`), 0o644))
	ok, err := VerifyPackageHash(dir, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
