// Package evidence produces and verifies the content-addressed bundle
// a workflow run leaves behind (spec.md §4.8): manifest.json, the
// stored workflow definition and policy, and the audit log, each
// checksummed so a later inspection can detect tampering.
//
// Grounded on the original implementation's package registry hashing
// (original_source/packages/src/spec/mod.rs's compute_content_hash:
// hash sorted file bytes, then the manifest, then sorted dependency
// hashes) — adapted here from a package's source tree to a workflow
// run's artefact set, expressed with the teacher's plain-struct +
// encoding/json idiom and log/slog on write.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"boruna/internal/capability"
	"boruna/internal/workflow"
)

const (
	manifestFile = "manifest.json"
	workflowFile = "workflow.json"
	policyFile   = "policy.json"
	auditLogFile = "audit.log"
)

// FileChecksum is one entry of a manifest's file list. A slice sorted
// by Path, rather than a map, keeps the manifest's own JSON rendering
// byte-stable without relying on encoding/json's map-key sort.
type FileChecksum struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Environment fingerprints the runtime that produced the bundle.
type Environment struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func currentEnvironment() Environment {
	return Environment{GoVersion: runtime.Version(), OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Manifest is the root artefact of an evidence bundle.
type Manifest struct {
	RunID        string         `json:"run_id"`
	BundleHash   string         `json:"bundle_hash"`
	AuditLogHash string         `json:"audit_log_hash"`
	WorkflowHash string         `json:"workflow_hash"`
	PolicyHash   string         `json:"policy_hash"`
	Environment  Environment    `json:"environment"`
	Files        []FileChecksum `json:"files"`
}

// WriteBundle writes <dir>/<runID>/{manifest.json, workflow.json,
// policy.json, audit.log}, each sha-256-checksummed, and returns the
// manifest it wrote.
func WriteBundle(dir, runID string, def workflow.WorkflowDef, policy *capability.Policy, audit *AuditLog, log *slog.Logger) (*Manifest, error) {
	if log == nil {
		log = slog.Default()
	}
	runDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: create bundle dir: %w", err)
	}

	workflowJSON, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: marshal workflow: %w", err)
	}
	policySrc := policy
	if policySrc == nil {
		policySrc = capability.DenyAll()
	}
	policyJSON, err := json.MarshalIndent(policySrc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: marshal policy: %w", err)
	}
	auditJSON, err := audit.MarshalJSONL()
	if err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: marshal audit log: %w", err)
	}

	files := map[string][]byte{
		workflowFile: workflowJSON,
		policyFile:   policyJSON,
		auditLogFile: auditJSON,
	}

	var checksums []FileChecksum
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(runDir, name), content, 0o644); err != nil {
			return nil, fmt.Errorf("E_EVIDENCE: write %s: %w", name, err)
		}
		checksums = append(checksums, FileChecksum{Path: name, SHA256: sha256Hex(content)})
	}
	sort.Slice(checksums, func(i, j int) bool { return checksums[i].Path < checksums[j].Path })

	manifest := &Manifest{
		RunID:        runID,
		AuditLogHash: sha256Hex(auditJSON),
		WorkflowHash: sha256Hex(workflowJSON),
		PolicyHash:   sha256Hex(policyJSON),
		Environment:  currentEnvironment(),
		Files:        checksums,
	}
	manifest.BundleHash = bundleHash(checksums)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, manifestFile), manifestJSON, 0o644); err != nil {
		return nil, fmt.Errorf("E_EVIDENCE: write manifest: %w", err)
	}

	log.Info("evidence bundle written", slog.String("run_id", runID), slog.String("dir", runDir), slog.String("bundle_hash", manifest.BundleHash))
	return manifest, nil
}

// bundleHash folds every file's checksum, in sorted path order, into
// one digest — the bundle-level analogue of the original's
// compute_content_hash folding sorted source bytes then dependency
// hashes into a single package hash.
func bundleHash(checksums []FileChecksum) string {
	h := sha256.New()
	for _, c := range checksums {
		h.Write([]byte("FILE:"))
		h.Write([]byte(c.Path))
		h.Write([]byte("="))
		h.Write([]byte(c.SHA256))
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
