// Package compiler represents the boundary to Boruna's `.ax` compiler
// (spec.md §1: "the compiler itself is out of scope; only the Module
// it produces matters"). The original implementation's crates call
// `boruna_compiler::compile(name, source) -> Module` from half a dozen
// call sites (CLI, package registry, workflow runner); this package is
// the Go shape of that same seam, so callers in this module (the CLI,
// internal/workflow, internal/evidence) have one place to depend on
// rather than each inventing their own compiler handle.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boruna/internal/value"
)

// Compiler turns `.ax` source into a *value.Module. The real
// implementation lives outside this module's scope; Compile exists so
// call sites can be written against the interface now and wired to a
// real compiler later without reshaping their callers.
type Compiler interface {
	Compile(name, source string) (*value.Module, error)
}

// ErrNotImplemented is returned by the stub Compiler below for any
// source that isn't already pre-compiled bytecode.
var ErrNotImplemented = fmt.Errorf("E_COMPILER: source compilation is outside this module's scope; provide a .axbc module instead")

// BytecodeCompiler is the only Compiler this module ships: it accepts
// pre-compiled modules two ways — literal canonical-JSON source (as
// produced by value.Module.ToJSON) passed directly as "source", or a
// `.axbc` file path resolved relative to Dir. Anything that looks like
// `.ax` source text is rejected with ErrNotImplemented, since lexing
// and parsing `.ax` are the excluded compiler internals.
type BytecodeCompiler struct {
	Dir string
}

func (c BytecodeCompiler) Compile(name, source string) (*value.Module, error) {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "{") {
		return value.ModuleFromJSON([]byte(source))
	}
	if strings.HasSuffix(trimmed, ".axbc") {
		return LoadFile(filepath.Join(c.Dir, trimmed))
	}
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, name)
}

// LoadFile reads a .axbc module file (JSON-encoded, spec.md §6 format
// (b)) from disk.
func LoadFile(path string) (*value.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("E_COMPILER: read module %s: %w", path, err)
	}
	m, err := value.ModuleFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("E_COMPILER: parse module %s: %w", path, err)
	}
	return m, nil
}

// WriteFile writes m to path as canonical JSON, matching
// value.Module.ToJSON's wire shape exactly (no re-encoding, so the
// canonical encoder's float formatting and key order survive intact).
func WriteFile(path string, m *value.Module) error {
	data, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("E_COMPILER: serialize module: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("E_COMPILER: write module %s: %w", path, err)
	}
	return nil
}
