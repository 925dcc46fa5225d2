package capability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/value"
)

func TestLocalHandlerFsWriteThenFsRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	h := LocalHandler{}

	writeCap, _ := LookupByName("fs.write")
	n, err := h.Handle(context.Background(), writeCap, []value.Value{value.String(path), value.String("hello")})
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), n)

	readCap, _ := LookupByName("fs.read")
	data, err := h.Handle(context.Background(), readCap, []value.Value{value.String(path)})
	require.NoError(t, err)
	assert.Equal(t, value.String("hello"), data)
}

func TestLocalHandlerRandomIsWithinUnitRange(t *testing.T) {
	h := LocalHandler{}
	randomCap, _ := LookupByName("random")
	v, err := h.Handle(context.Background(), randomCap, nil)
	require.NoError(t, err)
	f, ok := v.(value.Float)
	require.True(t, ok)
	assert.GreaterOrEqual(t, float64(f), 0.0)
	assert.Less(t, float64(f), 1.0)
}

func TestDispatchHandlerRoutesByKindAndFallsBack(t *testing.T) {
	netCap, _ := LookupByName("net.fetch")
	dbCap, _ := LookupByName("db.query")

	fakeNet := HandlerFunc(func(_ context.Context, _ Capability, _ []value.Value) (value.Value, error) {
		return value.String("net"), nil
	})
	fallback := NewMockHandler(map[string]value.Value{"db.query": value.String("fallback")})

	d := NewDispatchHandler(map[Kind]Handler{KindNetFetch: fakeNet}, fallback)

	v, err := d.Handle(context.Background(), netCap, nil)
	require.NoError(t, err)
	assert.Equal(t, value.String("net"), v)

	v, err = d.Handle(context.Background(), dbCap, nil)
	require.NoError(t, err)
	assert.Equal(t, value.String("fallback"), v)
}
