package effect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/value"
)

func descriptor(kind string, args []value.Value, callback value.Value) value.Value {
	m := value.NewMap()
	m.Set("kind", value.String(kind))
	m.Set("args", &value.List{Items: args})
	if callback != nil {
		m.Set("callback", callback)
	}
	return m
}

func TestExecutorRunsCapabilityBackedEffectAndWrapsCallback(t *testing.T) {
	gw := capability.NewGateway(capability.AllowAll(), capability.NewMockHandler(map[string]value.Value{
		"time.now": value.Int(1000),
	}), nil)
	ex := NewExecutor(gw)
	log := eventlog.New()

	effects := []value.Value{descriptor("timer", nil, value.String("tick"))}
	results, err := ex.Run(context.Background(), effects, log)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec, ok := results[0].(*value.Record)
	require.True(t, ok)
	assert.Equal(t, value.String("tick"), rec.Fields[0])
	assert.Equal(t, value.Int(1000), rec.Fields[1])
}

func TestExecutorEmitUiLeavesGapInResults(t *testing.T) {
	gw := capability.NewGateway(capability.AllowAll(), capability.NewMockHandler(map[string]value.Value{
		"time.now": value.Int(1),
	}), nil)
	ex := NewExecutor(gw)
	log := eventlog.New()

	effects := []value.Value{
		descriptor("emit_ui", []value.Value{value.String("<tree>")}, nil),
		descriptor("timer", nil, value.String("tick")),
	}
	results, err := ex.Run(context.Background(), effects, log)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, value.Unit{}, results[0])

	rec, ok := results[1].(*value.Record)
	require.True(t, ok)
	assert.Equal(t, value.Int(1), rec.Fields[1])

	uiEvents := 0
	for _, e := range log.Snapshot() {
		if e.Kind == eventlog.KindUiEmit {
			uiEvents++
		}
	}
	assert.Equal(t, 1, uiEvents)
}

func TestExecutorRejectsUnknownEffectKind(t *testing.T) {
	gw := capability.NewGateway(capability.AllowAll(), capability.NewMockHandler(nil), nil)
	ex := NewExecutor(gw)
	log := eventlog.New()

	_, err := ex.Run(context.Background(), []value.Value{descriptor("teleport", nil, nil)}, log)
	assert.Error(t, err)
}

func TestExecutorDeniedCapabilityPropagatesError(t *testing.T) {
	gw := capability.NewGateway(capability.DenyAll(), capability.NewMockHandler(nil), nil)
	ex := NewExecutor(gw)
	log := eventlog.New()

	_, err := ex.Run(context.Background(), []value.Value{descriptor("timer", nil, nil)}, log)
	require.Error(t, err)
	var denied *capability.CapabilityDenied
	require.ErrorAs(t, err, &denied)
}
