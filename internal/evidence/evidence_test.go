package evidence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/capability"
	"boruna/internal/workflow"
)

func sampleDef() workflow.WorkflowDef {
	return workflow.WorkflowDef{
		Name: "demo",
		Steps: []workflow.StepDef{
			{ID: "a", FuncIdx: 0},
			{ID: "b", FuncIdx: 1, DependsOn: []string{"a"}},
		},
		DefaultPolicy: capability.AllowAll(),
	}
}

func sampleAuditLog() *AuditLog {
	log := NewAuditLog()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	log.WorkflowStarted("demo", now)
	log.StepCompleted("a", "deadbeef", now.Add(time.Second))
	log.WorkflowCompleted("demo", now.Add(2*time.Second))
	return log
}

func TestWriteBundleThenVerifySucceeds(t *testing.T) {
	dir := t.TempDir()
	manifest, err := WriteBundle(dir, "run-1", sampleDef(), capability.AllowAll(), sampleAuditLog(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.BundleHash)
	assert.Len(t, manifest.Files, 3)

	reloaded, mismatch, err := Verify(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Nil(t, mismatch)
	assert.Equal(t, manifest.BundleHash, reloaded.BundleHash)
}

func TestVerifyDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteBundle(dir, "run-1", sampleDef(), capability.AllowAll(), sampleAuditLog(), nil)
	require.NoError(t, err)

	runDir := filepath.Join(dir, "run-1")
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "workflow.json"), []byte(`{"tampered":true}`), 0o644))

	_, mismatch, err := Verify(runDir)
	require.NoError(t, err)
	require.NotNil(t, mismatch)
	assert.Equal(t, "workflow.json", mismatch.Path)
	assert.NotEqual(t, mismatch.Expected, mismatch.Actual)
}

func TestVerifyReportsMissingFileAsMismatch(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteBundle(dir, "run-1", sampleDef(), capability.AllowAll(), sampleAuditLog(), nil)
	require.NoError(t, err)

	runDir := filepath.Join(dir, "run-1")
	require.NoError(t, os.Remove(filepath.Join(runDir, "audit.log")))

	_, mismatch, err := Verify(runDir)
	require.NoError(t, err)
	require.NotNil(t, mismatch)
	assert.Equal(t, "audit.log", mismatch.Path)
	assert.Empty(t, mismatch.Actual)
}

func TestBundleHashIsDeterministicAcrossRuns(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	m1, err := WriteBundle(dir1, "run-x", sampleDef(), capability.AllowAll(), sampleAuditLog(), nil)
	require.NoError(t, err)
	m2, err := WriteBundle(dir2, "run-x", sampleDef(), capability.AllowAll(), sampleAuditLog(), nil)
	require.NoError(t, err)
	assert.Equal(t, m1.BundleHash, m2.BundleHash)
}
