package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/capability"
	"boruna/internal/value"
)

func moduleWithMain(fn value.Function) *value.Module {
	return &value.Module{
		Name:      "test",
		Entry:     0,
		Functions: []value.Function{fn},
	}
}

func TestCallReturnFrameBookkeeping(t *testing.T) {
	// add(a, b) { return a + b } called as add(2, 3), then Halt.
	add := value.Function{
		Name:   "add",
		Arity:  2,
		Locals: 2,
		Code: []value.Op{
			{Code: value.OpLoadLocal, A: 0},
			{Code: value.OpLoadLocal, A: 1},
			{Code: value.OpAdd},
			{Code: value.OpRet},
		},
	}
	main := value.Function{
		Name:   "main",
		Locals: 0,
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpCall, A: 1, B: 2},
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{
		Name:      "test",
		Entry:     0,
		Constants: []value.Value{value.Int(2), value.Int(3)},
		Functions: []value.Function{main, add},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), result)
}

func TestReceiveMsgBoundedBlocksAndRewindsIP(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpReceiveMsg},
			{Code: value.OpHalt},
		},
	}
	v := New(moduleWithMain(fn), nil)

	res := v.ExecuteBounded(context.Background(), 10)
	assert.Equal(t, Blocked, res.Kind)

	v.DeliverMessage(value.Int(7))
	res = v.ExecuteBounded(context.Background(), 10)
	assert.Equal(t, Completed, res.Kind)
	assert.Equal(t, value.Int(7), res.Value)
}

func TestReceiveMsgLegacyPushesUnitWhenEmpty(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpReceiveMsg},
			{Code: value.OpHalt},
		},
	}
	v := New(moduleWithMain(fn), nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Unit{}, result)
}

func TestMatchWildcardArmAndFirstMatchWins(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0}, // Some(5)
			{Code: value.OpMatch, A: 0},
			// arm 0: variant "None" tag -2 -> jmp 7 (unreachable by this const)
			{Code: value.OpJmp, A: 7},
			// arm matched lands here (for variant Some tag -3): push payload, done
			{Code: value.OpHalt},
		},
		MatchTables: [][]value.MatchArm{
			{
				{Tag: -2, Target: 2},
				{Tag: -3, Target: 3},
				{Tag: -1, Target: 2},
			},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Some(value.Int(5))},
		Functions: []value.Function{fn},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), result)
}

func TestIntArithmeticWrapsAndDivByZeroErrors(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpAdd},
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(9223372036854775807), value.Int(1)},
		Functions: []value.Function{fn},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(-9223372036854775808), result)

	divFn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpDiv},
			{Code: value.OpHalt},
		},
	}
	mod2 := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(1), value.Int(0)},
		Functions: []value.Function{divFn},
	}
	v2 := New(mod2, nil)
	_, err = v2.Run(context.Background())
	require.Error(t, err)
	var vmErr *Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "DivisionByZero", vmErr.Kind)
}

func TestFloatNaNEqualsNaNViaEq(t *testing.T) {
	nan := value.Float(0)
	nan = value.Float(mathNaN())
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpEq},
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{nan},
		Functions: []value.Function{fn},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), result)
}

func mathNaN() float64 {
	var zero float64
	return zero / zero
}

func TestCapCallStaticDeclarationCheckRejectsUndeclared(t *testing.T) {
	fn := value.Function{
		Name:         "main",
		Capabilities: nil, // time.now not declared
		Code: []value.Op{
			{Code: value.OpCapCall, A: int32(mustCapID(t, "time.now")), B: 0},
			{Code: value.OpHalt},
		},
	}
	gw := capability.NewGateway(capability.AllowAll(), capability.NewMockHandler(map[string]value.Value{
		"time.now": value.Int(1),
	}), nil)
	v := New(moduleWithMain(fn), gw)
	_, err := v.Run(context.Background())
	require.Error(t, err)
	var vmErr *Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "CapabilityDenied", vmErr.Kind)
}

func TestCapCallDeclaredSucceedsThroughGateway(t *testing.T) {
	capID := mustCapID(t, "time.now")
	fn := value.Function{
		Name:         "main",
		Capabilities: []uint16{capID},
		Code: []value.Op{
			{Code: value.OpCapCall, A: int32(capID), B: 0},
			{Code: value.OpHalt},
		},
	}
	gw := capability.NewGateway(capability.AllowAll(), capability.NewMockHandler(map[string]value.Value{
		"time.now": value.Int(1234),
	}), nil)
	v := New(moduleWithMain(fn), gw)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, value.Int(1234), result)
}

func mustCapID(t *testing.T, name string) uint16 {
	t.Helper()
	c, ok := capability.LookupByName(name)
	require.True(t, ok)
	return c.ID
}

func TestCallDepthExceededIsStackOverflow(t *testing.T) {
	// recurse(n) { recurse(n) } — infinite recursion, no base case.
	recurse := value.Function{
		Name:   "recurse",
		Arity:  1,
		Locals: 1,
		Code: []value.Op{
			{Code: value.OpLoadLocal, A: 0},
			{Code: value.OpCall, A: 1, B: 1},
			{Code: value.OpRet},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(1)},
	}
	main := value.Function{
		Name:   "main",
		Locals: 0,
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpCall, A: 1, B: 1},
			{Code: value.OpHalt},
		},
	}
	mod.Functions = []value.Function{main, recurse}
	v := New(mod, nil)
	_, err := v.Run(context.Background())
	require.Error(t, err)
	var vmErr *Error
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, "StackOverflow", vmErr.Kind)
}

func TestListPushProducesNewListLeavingOriginalUntouched(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0}, // [1, 2]
			{Code: value.OpLoadConst, A: 1}, // 3
			{Code: value.OpListPush},
			{Code: value.OpHalt},
		},
	}
	original := &value.List{Items: []value.Value{value.Int(1), value.Int(2)}}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{original, value.Int(3)},
		Functions: []value.Function{fn},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	list, ok := result.(*value.List)
	require.True(t, ok)
	assert.Equal(t, 3, len(list.Items))
	assert.Equal(t, 2, len(original.Items))
}

func TestMakeEnumOptionResultSugar(t *testing.T) {
	fn := value.Function{
		Name: "main",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpMakeEnum, A: int32(value.OptionTypeID), B: 1}, // Some(5)
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(5)},
		Functions: []value.Function{fn},
	}
	v := New(mod, nil)
	result, err := v.Run(context.Background())
	require.NoError(t, err)
	opt, ok := result.(*value.Option)
	require.True(t, ok)
	assert.True(t, opt.Some)
	assert.Equal(t, value.Int(5), opt.Inner)
}
