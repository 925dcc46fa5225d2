package compiler

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/value"
)

func sampleModule() *value.Module {
	return &value.Module{
		Name:    "demo",
		Version: "0.1.0",
		Entry:   0,
		Functions: []value.Function{
			{Name: "main", Code: []value.Op{{Code: value.OpLoadConst, A: 0}, {Code: value.OpRet}}},
		},
		Constants: []value.Value{value.Int(42)},
	}
}

func TestWriteFileThenLoadFileRoundtrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.axbc")

	m := sampleModule()
	require.NoError(t, WriteFile(path, m))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, m.Equal(loaded))
}

func TestBytecodeCompilerAcceptsInlineJSON(t *testing.T) {
	m := sampleModule()
	data, err := m.ToJSON()
	require.NoError(t, err)

	c := BytecodeCompiler{}
	loaded, err := c.Compile("demo", string(data))
	require.NoError(t, err)
	assert.True(t, m.Equal(loaded))
}

func TestBytecodeCompilerRejectsRawSource(t *testing.T) {
	c := BytecodeCompiler{}
	_, err := c.Compile("demo", "fn main() -> Int { 42 }")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotImplemented))
}

func TestBytecodeCompilerResolvesAxbcPathRelativeToDir(t *testing.T) {
	dir := t.TempDir()
	m := sampleModule()
	require.NoError(t, WriteFile(filepath.Join(dir, "demo.axbc"), m))

	c := BytecodeCompiler{Dir: dir}
	loaded, err := c.Compile("demo", "demo.axbc")
	require.NoError(t, err)
	assert.True(t, m.Equal(loaded))
}
