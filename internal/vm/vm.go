// Package vm implements Boruna's bytecode stack machine: call frames,
// bounded execution, and dispatch through a pluggable capability
// gateway (spec.md §4.1). Grounded on the teacher's cooperative-task
// frame bookkeeping (internal/runtime/task.go) and dispatch-loop shape
// (internal/evaluator/evaluator.go), with the IP-rewind suspension
// idiom from internal/runtime/select.go generalized to ReceiveMsg.
package vm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/obslog"
	"boruna/internal/value"
)

const (
	MaxOperandStack = 4096
	MaxCallDepth    = 256
)

// SpawnRequest is a deferred SpawnActor effect; the scheduler
// materializes it into a real Actor after draining (spec.md §4.1).
type SpawnRequest struct {
	FuncIdx uint32
}

// OutgoingMessage is a deferred SendMsg effect.
type OutgoingMessage struct {
	To      value.ActorID
	Payload value.Value
}

// StepResultKind tags the outcome of ExecuteBounded.
type StepResultKind int

const (
	Completed StepResultKind = iota
	Yielded
	Blocked
	Errored
)

// StepResult is the result of one bounded execution slice.
type StepResult struct {
	Kind      StepResultKind
	Value     value.Value
	StepsUsed int
	Err       error
}

// Vm is a single stack machine instance: one per actor.
type Vm struct {
	module  *value.Module
	gateway *capability.Gateway
	log     *slog.Logger

	globals      []value.Value
	operandStack []value.Value
	callStack    []frame
	mailbox      []value.Value

	outgoing      []OutgoingMessage
	spawnRequests []SpawnRequest

	eventLog  *eventlog.EventLog
	stepCount int
	uiOutput  value.Value
	trace     []string

	entryFunc   int
	initialArgs []value.Value
}

// New constructs a Vm over module, driving capability calls through
// gateway. gateway may be nil for programs that never touch a
// capability (tests).
func New(module *value.Module, gateway *capability.Gateway) *Vm {
	globals := make([]value.Value, len(module.Globals))
	copy(globals, module.Globals)
	return &Vm{
		module:    module,
		gateway:   gateway,
		log:       obslog.Discard(),
		globals:   globals,
		eventLog:  eventlog.New(),
		uiOutput:  value.Unit{},
		entryFunc: int(module.Entry),
	}
}

func (v *Vm) SetLogger(l *slog.Logger) { v.log = l }

// SetEntryFunction selects which function index Run/ExecuteBounded
// starts from, overriding Module.Entry.
func (v *Vm) SetEntryFunction(idx int) { v.entryFunc = idx }

func (v *Vm) EventLog() *eventlog.EventLog { return v.eventLog }

// SetEventLog redirects this Vm's capability/ui events onto a shared
// log — used by internal/actors so every actor in a system appends to
// one system-wide trace instead of an isolated per-actor one.
func (v *Vm) SetEventLog(log *eventlog.EventLog) { v.eventLog = log }
func (v *Vm) StepCount() int               { return v.stepCount }
func (v *Vm) UIOutput() value.Value        { return v.uiOutput }
func (v *Vm) Trace() []string              { return v.trace }

// DeliverMessage enqueues an incoming message onto this actor's
// mailbox, to be consumed by the next ReceiveMsg opcode.
func (v *Vm) DeliverMessage(payload value.Value) {
	v.mailbox = append(v.mailbox, payload)
}

// DrainOutgoingMessages returns and clears messages queued by SendMsg
// since the last drain.
func (v *Vm) DrainOutgoingMessages() []OutgoingMessage {
	out := v.outgoing
	v.outgoing = nil
	return out
}

// DrainSpawnRequests returns and clears spawn requests queued by
// SpawnActor since the last drain.
func (v *Vm) DrainSpawnRequests() []SpawnRequest {
	out := v.spawnRequests
	v.spawnRequests = nil
	return out
}

// SetInitialArgs seeds the entry function's first locals before its
// first frame is built — the mechanism by which callers outside the
// bytecode (framework cycles, workflow steps) invoke a function with
// arguments, since the entry frame has no caller to push them via Call.
func (v *Vm) SetInitialArgs(args []value.Value) { v.initialArgs = args }

func (v *Vm) entryFrame() frame {
	locals := v.newLocals(v.entryFunc)
	for i := range v.initialArgs {
		if i < len(locals) {
			locals[i] = v.initialArgs[i]
		}
	}
	return frame{funcIdx: v.entryFunc, ip: 0, locals: locals, stackBase: 0}
}

func (v *Vm) newLocals(funcIdx int) []value.Value {
	if funcIdx < 0 || funcIdx >= len(v.module.Functions) {
		return nil
	}
	fn := v.module.Functions[funcIdx]
	locals := make([]value.Value, fn.Locals)
	for i := range locals {
		locals[i] = value.Unit{}
	}
	return locals
}

// Run executes the whole program to completion without a step budget
// (spec.md §4.1 "legacy unbounded loop; used by single-actor programs
// and tests"). ReceiveMsg on an empty mailbox pushes Unit rather than
// blocking, a documented compatibility path.
func (v *Vm) Run(ctx context.Context) (value.Value, error) {
	if len(v.callStack) == 0 {
		v.callStack = append(v.callStack, v.entryFrame())
	}
	for {
		sig, err := v.step(ctx, false)
		if err != nil {
			return nil, err
		}
		switch sig.kind {
		case sigCompleted:
			return sig.value, nil
		case sigContinue:
			continue
		case sigBlocked:
			// Legacy mode never blocks: step() only returns sigBlocked
			// when bounded is true.
			continue
		}
	}
}

// ExecuteBounded runs up to budget opcodes, yielding StepResult per
// spec.md §4.1's StepResult union.
func (v *Vm) ExecuteBounded(ctx context.Context, budget int) StepResult {
	if len(v.callStack) == 0 {
		v.callStack = append(v.callStack, v.entryFrame())
	}
	used := 0
	for used < budget {
		sig, err := v.step(ctx, true)
		if err != nil {
			return StepResult{Kind: Errored, Err: err, StepsUsed: used}
		}
		used++
		switch sig.kind {
		case sigCompleted:
			return StepResult{Kind: Completed, Value: sig.value, StepsUsed: used}
		case sigBlocked:
			return StepResult{Kind: Blocked, StepsUsed: used}
		case sigContinue:
			continue
		}
	}
	return StepResult{Kind: Yielded, StepsUsed: used}
}

type signalKind int

const (
	sigContinue signalKind = iota
	sigCompleted
	sigBlocked
)

type signal struct {
	kind  signalKind
	value value.Value
}

// step executes exactly one opcode against the topmost frame,
// returning the signal produced. The topmost frame's ip is advanced
// before dispatch so jump opcodes can overwrite it (spec.md §4.1).
func (v *Vm) step(ctx context.Context, bounded bool) (signal, error) {
	if len(v.callStack) == 0 {
		return signal{}, newErr("InvalidFunction", "no active frame")
	}
	top := &v.callStack[len(v.callStack)-1]
	fn := v.module.Functions[top.funcIdx]
	if top.ip < 0 || top.ip >= len(fn.Code) {
		return signal{}, newErr("InvalidFunction", "ip %d out of range for function %q", top.ip, fn.Name)
	}
	op := fn.Code[top.ip]
	top.ip++
	v.stepCount++
	v.trace = append(v.trace, fmt.Sprintf("%s@%d", op.Code, top.ip-1))

	return v.dispatch(ctx, op, top, &fn, bounded)
}

func (v *Vm) push(val value.Value) error {
	if len(v.operandStack) >= MaxOperandStack {
		return errStackOverflow(MaxOperandStack)
	}
	v.operandStack = append(v.operandStack, val)
	return nil
}

func (v *Vm) pop() (value.Value, error) {
	if len(v.operandStack) == 0 {
		return nil, errStackUnderflow()
	}
	n := len(v.operandStack) - 1
	val := v.operandStack[n]
	v.operandStack = v.operandStack[:n]
	return val, nil
}

func (v *Vm) popN(n int) ([]value.Value, error) {
	if len(v.operandStack) < n {
		return nil, errStackUnderflow()
	}
	start := len(v.operandStack) - n
	out := make([]value.Value, n)
	copy(out, v.operandStack[start:])
	v.operandStack = v.operandStack[:start]
	return out, nil
}

func (v *Vm) peek() (value.Value, error) {
	if len(v.operandStack) == 0 {
		return nil, errStackUnderflow()
	}
	return v.operandStack[len(v.operandStack)-1], nil
}

func asInt(v value.Value) (int64, bool) {
	i, ok := v.(value.Int)
	return int64(i), ok
}

func asFloat(v value.Value) (float64, bool) {
	f, ok := v.(value.Float)
	return float64(f), ok
}

func asString(v value.Value) (string, bool) {
	s, ok := v.(value.String)
	return string(s), ok
}

// dispatch implements every opcode's semantics (spec.md §4.1).
func (v *Vm) dispatch(ctx context.Context, op value.Op, top *frame, fn *value.Function, bounded bool) (signal, error) {
	switch op.Code {
	case value.OpNop:
		return signal{kind: sigContinue}, nil

	case value.OpLoadConst:
		idx := int(op.A)
		if idx < 0 || idx >= len(v.module.Constants) {
			return signal{}, errInvalidConstant(idx)
		}
		if err := v.push(v.module.Constants[idx].Clone()); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpLoadLocal:
		idx := int(op.A)
		if idx < 0 || idx >= len(top.locals) {
			return signal{}, errInvalidLocal(idx)
		}
		if err := v.push(top.locals[idx].Clone()); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpStoreLocal:
		idx := int(op.A)
		if idx < 0 || idx >= len(top.locals) {
			return signal{}, errInvalidLocal(idx)
		}
		val, err := v.pop()
		if err != nil {
			return signal{}, err
		}
		top.locals[idx] = val
		return signal{kind: sigContinue}, nil

	case value.OpLoadGlobal:
		idx := int(op.A)
		if idx < 0 || idx >= len(v.globals) {
			return signal{}, errInvalidGlobal(idx)
		}
		if err := v.push(v.globals[idx].Clone()); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpStoreGlobal:
		idx := int(op.A)
		if idx < 0 || idx >= len(v.globals) {
			return signal{}, errInvalidGlobal(idx)
		}
		val, err := v.pop()
		if err != nil {
			return signal{}, err
		}
		v.globals[idx] = val
		return signal{kind: sigContinue}, nil

	case value.OpCall:
		return v.opCall(int(op.A), int(op.B))

	case value.OpRet:
		return v.opRet()

	case value.OpJmp:
		top.ip = int(op.A)
		return signal{kind: sigContinue}, nil

	case value.OpJmpIf:
		cond, err := v.pop()
		if err != nil {
			return signal{}, err
		}
		if value.Truthy(cond) {
			top.ip = int(op.A)
		}
		return signal{kind: sigContinue}, nil

	case value.OpJmpIfNot:
		cond, err := v.pop()
		if err != nil {
			return signal{}, err
		}
		if !value.Truthy(cond) {
			top.ip = int(op.A)
		}
		return signal{kind: sigContinue}, nil

	case value.OpMatch:
		return v.opMatch(int(op.A), top, fn)

	case value.OpMakeRecord:
		return v.opMakeRecord(uint16(op.A), int(op.B))

	case value.OpMakeEnum:
		return v.opMakeEnum(uint16(op.A), uint16(op.B))

	case value.OpGetField:
		return v.opGetField(int(op.A))

	case value.OpMakeList:
		return v.opMakeList(int(op.A))

	case value.OpListLen:
		return v.opListLen()

	case value.OpListGet:
		return v.opListGet()

	case value.OpListPush:
		return v.opListPush()

	case value.OpAdd, value.OpSub, value.OpMul, value.OpDiv, value.OpMod:
		return v.opArith(op.Code)

	case value.OpNeg:
		return v.opNeg()

	case value.OpEq:
		return v.opEq(true)
	case value.OpNeq:
		return v.opEq(false)

	case value.OpLt, value.OpLte, value.OpGt, value.OpGte:
		return v.opCompare(op.Code)

	case value.OpAnd, value.OpOr:
		return v.opLogical(op.Code)

	case value.OpNot:
		return v.opNot()

	case value.OpConcat:
		return v.opConcat()

	case value.OpParseInt:
		return v.opParseInt(false)
	case value.OpTryParseInt:
		return v.opParseInt(true)

	case value.OpStrContains:
		return v.opStrBinaryPredicate(func(hay, needle string) bool {
			return contains(hay, needle)
		})
	case value.OpStrStartsWith:
		return v.opStrBinaryPredicate(func(hay, prefix string) bool {
			return startsWith(hay, prefix)
		})

	case value.OpCapCall:
		return v.opCapCall(ctx, int(op.A), int(op.B), fn)

	case value.OpSpawnActor:
		v.spawnRequests = append(v.spawnRequests, SpawnRequest{FuncIdx: uint32(op.A)})
		if err := v.push(value.Unit{}); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpSendMsg:
		return v.opSendMsg()

	case value.OpReceiveMsg:
		return v.opReceiveMsg(top, bounded)

	case value.OpEmitUi:
		tree, err := v.pop()
		if err != nil {
			return signal{}, err
		}
		v.uiOutput = tree
		v.eventLog.Append(eventlog.NewUiEmit(tree))
		return signal{kind: sigContinue}, nil

	case value.OpDup:
		val, err := v.peek()
		if err != nil {
			return signal{}, err
		}
		if err := v.push(val.Clone()); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpPop:
		if _, err := v.pop(); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil

	case value.OpAssert:
		return v.opAssert(int(op.A))

	case value.OpHalt:
		top, err := v.popTopOrUnit()
		if err != nil {
			return signal{}, err
		}
		return signal{kind: sigCompleted, value: top}, nil

	default:
		return signal{}, newErr("InvalidFunction", "unknown opcode %v", op.Code)
	}
}

func (v *Vm) popTopOrUnit() (value.Value, error) {
	if len(v.operandStack) == 0 {
		return value.Unit{}, nil
	}
	return v.pop()
}

func (v *Vm) opCall(funcIdx, argc int) (signal, error) {
	if funcIdx < 0 || funcIdx >= len(v.module.Functions) {
		return signal{}, errInvalidFunction(funcIdx)
	}
	if len(v.callStack) >= MaxCallDepth {
		return signal{}, errCallDepthExceeded(MaxCallDepth)
	}
	args, err := v.popN(argc)
	if err != nil {
		return signal{}, err
	}
	target := v.module.Functions[funcIdx]
	locals := make([]value.Value, target.Locals)
	for i := range locals {
		if i < len(args) {
			locals[i] = args[i]
		} else {
			locals[i] = value.Unit{}
		}
	}
	v.callStack = append(v.callStack, frame{
		funcIdx:   funcIdx,
		ip:        0,
		locals:    locals,
		stackBase: len(v.operandStack),
	})
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opRet() (signal, error) {
	top := v.callStack[len(v.callStack)-1]
	result, err := v.popTopOrUnit()
	if err != nil {
		return signal{}, err
	}
	v.operandStack = v.operandStack[:top.stackBase]
	v.callStack = v.callStack[:len(v.callStack)-1]

	if len(v.callStack) == 0 {
		return signal{kind: sigCompleted, value: result}, nil
	}
	if err := v.push(result); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opMatch(tableIdx int, top *frame, fn *value.Function) (signal, error) {
	if tableIdx < 0 || tableIdx >= len(fn.MatchTables) {
		return signal{}, newErr("InvalidFunction", "no match table %d", tableIdx)
	}
	scrutinee, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	tag := value.MatchTag(scrutinee)
	table := fn.MatchTables[tableIdx]
	for _, arm := range table {
		if arm.Tag == tag || arm.Tag == -1 {
			if err := v.push(value.MatchPayload(scrutinee)); err != nil {
				return signal{}, err
			}
			top.ip = int(arm.Target)
			return signal{kind: sigContinue}, nil
		}
	}
	return signal{}, errMatchExhausted()
}

func (v *Vm) opMakeRecord(typeID uint16, fieldCount int) (signal, error) {
	fields, err := v.popN(fieldCount)
	if err != nil {
		return signal{}, err
	}
	if err := v.push(&value.Record{TypeID: typeID, Fields: fields}); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

// opMakeEnum builds an Enum, or Option/Result sugar when type_id is
// one of the emitter's synthetic ids (spec.md §3, §9 Open Question —
// decided: variant 0 means None/Ok, variant 1 means Some/Err; see
// DESIGN.md).
func (v *Vm) opMakeEnum(typeID, variant uint16) (signal, error) {
	payload, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	var result value.Value
	switch typeID {
	case value.OptionTypeID:
		if variant == 0 {
			result = value.None()
		} else {
			result = value.Some(payload)
		}
	case value.ResultTypeID:
		if variant == 0 {
			result = value.Ok(payload)
		} else {
			result = value.Err(payload)
		}
	default:
		result = &value.Enum{TypeID: typeID, Variant: variant, Payload: payload}
	}
	if err := v.push(result); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opGetField(idx int) (signal, error) {
	top, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	rec, ok := top.(*value.Record)
	if !ok {
		return signal{}, errTypeError("Record", value.TypeName(top))
	}
	if idx < 0 || idx >= len(rec.Fields) {
		return signal{}, errIndexOutOfBounds(idx, len(rec.Fields))
	}
	if err := v.push(rec.Fields[idx]); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opMakeList(count int) (signal, error) {
	items, err := v.popN(count)
	if err != nil {
		return signal{}, err
	}
	if err := v.push(&value.List{Items: items}); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opListLen() (signal, error) {
	top, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	items, ok := value.AsListItems(top)
	if !ok {
		return signal{}, errTypeError("List", value.TypeName(top))
	}
	if err := v.push(value.Int(len(items))); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opListGet() (signal, error) {
	idxVal, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	idx, ok := asInt(idxVal)
	if !ok {
		return signal{}, errTypeError("Int", value.TypeName(idxVal))
	}
	listVal, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	items, ok := value.AsListItems(listVal)
	if !ok {
		return signal{}, errTypeError("List", value.TypeName(listVal))
	}
	if idx < 0 || int(idx) >= len(items) {
		return signal{}, errIndexOutOfBounds(int(idx), len(items))
	}
	if err := v.push(items[idx]); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

// opListPush pops (list, item) and pushes a NEW list with item
// appended — Value is immutable after creation (spec.md §3 lifecycle).
func (v *Vm) opListPush() (signal, error) {
	item, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	listVal, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	items, ok := value.AsListItems(listVal)
	if !ok {
		return signal{}, errTypeError("List", value.TypeName(listVal))
	}
	newItems := make([]value.Value, len(items)+1)
	copy(newItems, items)
	newItems[len(items)] = item
	if err := v.push(&value.List{Items: newItems}); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opArith(code value.OpCode) (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	ai, aIsInt := asInt(a)
	bi, bIsInt := asInt(b)
	if aIsInt && bIsInt {
		var result int64
		switch code {
		case value.OpAdd:
			result = ai + bi // wraps modulo 2^64, per spec.md §4.1
		case value.OpSub:
			result = ai - bi
		case value.OpMul:
			result = ai * bi
		case value.OpDiv:
			if bi == 0 {
				return signal{}, errDivisionByZero()
			}
			result = ai / bi
		case value.OpMod:
			if bi == 0 {
				return signal{}, errDivisionByZero()
			}
			result = ai % bi
		}
		if err := v.push(value.Int(result)); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil
	}

	af, aOk := toFloat(a)
	bf, bOk := toFloat(b)
	if !aOk {
		return signal{}, errTypeError("Int or Float", value.TypeName(a))
	}
	if !bOk {
		return signal{}, errTypeError("Int or Float", value.TypeName(b))
	}
	var result float64
	switch code {
	case value.OpAdd:
		result = af + bf
	case value.OpSub:
		result = af - bf
	case value.OpMul:
		result = af * bf
	case value.OpDiv:
		if bf == 0 {
			return signal{}, errDivisionByZero()
		}
		result = af / bf
	case value.OpMod:
		if bf == 0 {
			return signal{}, errDivisionByZero()
		}
		result = mathMod(af, bf)
	}
	if err := v.push(value.Float(result)); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func toFloat(v value.Value) (float64, bool) {
	switch t := v.(type) {
	case value.Float:
		return float64(t), true
	case value.Int:
		return float64(t), true
	default:
		return 0, false
	}
}

func mathMod(a, b float64) float64 {
	m := a
	for m >= b {
		m -= b
	}
	for m < 0 {
		m += b
	}
	return m
}

func (v *Vm) opNeg() (signal, error) {
	top, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	switch t := top.(type) {
	case value.Int:
		return v.pushSignal(value.Int(-int64(t)))
	case value.Float:
		return v.pushSignal(value.Float(-float64(t)))
	default:
		return signal{}, errTypeError("Int or Float", value.TypeName(top))
	}
}

func (v *Vm) pushSignal(val value.Value) (signal, error) {
	if err := v.push(val); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opEq(wantEqual bool) (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	eq := a.Equal(b)
	if !wantEqual {
		eq = !eq
	}
	return v.pushSignal(value.Bool(eq))
}

// opCompare implements Lt/Lte/Gt/Gte over Int/Float, with Float NaN
// comparisons falling back to Equal semantics per spec.md §4.1/§9.
func (v *Vm) opCompare(code value.OpCode) (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	af, aOk := toFloat(a)
	bf, bOk := toFloat(b)
	if !aOk {
		return signal{}, errTypeError("Int or Float", value.TypeName(a))
	}
	if !bOk {
		return signal{}, errTypeError("Int or Float", value.TypeName(b))
	}
	isNaN := af != af || bf != bf
	var result bool
	switch code {
	case value.OpLt:
		result = !isNaN && af < bf
	case value.OpLte:
		result = isNaN || af <= bf
	case value.OpGt:
		result = !isNaN && af > bf
	case value.OpGte:
		result = isNaN || af >= bf
	}
	return v.pushSignal(value.Bool(result))
}

func (v *Vm) opLogical(code value.OpCode) (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	ab, aOk := a.(value.Bool)
	bb, bOk := b.(value.Bool)
	if !aOk {
		return signal{}, errTypeError("Bool", value.TypeName(a))
	}
	if !bOk {
		return signal{}, errTypeError("Bool", value.TypeName(b))
	}
	var result bool
	if code == value.OpAnd {
		result = bool(ab) && bool(bb)
	} else {
		result = bool(ab) || bool(bb)
	}
	return v.pushSignal(value.Bool(result))
}

func (v *Vm) opNot() (signal, error) {
	top, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	b, ok := top.(value.Bool)
	if !ok {
		return signal{}, errTypeError("Bool", value.TypeName(top))
	}
	return v.pushSignal(value.Bool(!bool(b)))
}

func (v *Vm) opConcat() (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	as, aOk := asString(a)
	bs, bOk := asString(b)
	if !aOk {
		return signal{}, errTypeError("String", value.TypeName(a))
	}
	if !bOk {
		return signal{}, errTypeError("String", value.TypeName(b))
	}
	return v.pushSignal(value.String(as + bs))
}

func (v *Vm) opParseInt(tryVariant bool) (signal, error) {
	top, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	s, ok := asString(top)
	if !ok {
		return signal{}, errTypeError("String", value.TypeName(top))
	}
	n, parseErr := strconv.ParseInt(s, 10, 64)
	if parseErr != nil {
		if tryVariant {
			return v.pushSignal(value.Err(value.String(parseErr.Error())))
		}
		return signal{}, errTypeError("parseable Int", "String")
	}
	if tryVariant {
		return v.pushSignal(value.Ok(value.Int(n)))
	}
	return v.pushSignal(value.Int(n))
}

func (v *Vm) opStrBinaryPredicate(pred func(a, b string) bool) (signal, error) {
	b, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	a, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	as, aOk := asString(a)
	bs, bOk := asString(b)
	if !aOk {
		return signal{}, errTypeError("String", value.TypeName(a))
	}
	if !bOk {
		return signal{}, errTypeError("String", value.TypeName(b))
	}
	return v.pushSignal(value.Bool(pred(as, bs)))
}

func contains(hay, needle string) bool {
	return len(needle) == 0 || indexOf(hay, needle) >= 0
}

func startsWith(hay, prefix string) bool {
	if len(prefix) > len(hay) {
		return false
	}
	return hay[:len(prefix)] == prefix
}

func indexOf(hay, needle string) int {
	n, m := len(hay), len(needle)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if hay[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// opCapCall implements spec.md §4.2's three CapCall preconditions
// before delegating to the Gateway.
func (v *Vm) opCapCall(ctx context.Context, capID, argc int, fn *value.Function) (signal, error) {
	cap, err := capability.Lookup(uint16(capID))
	if err != nil {
		return signal{}, errUnknownCapability(capID)
	}
	declared := false
	for _, c := range fn.Capabilities {
		if int(c) == capID {
			declared = true
			break
		}
	}
	if !declared {
		return signal{}, errUndeclaredCapability(cap.Name)
	}
	args, err := v.popN(argc)
	if err != nil {
		return signal{}, err
	}
	if v.gateway == nil {
		return signal{}, errCapabilityDenied(cap.Name)
	}
	result, callErr := v.gateway.Call(ctx, cap, args, v.eventLog)
	if callErr != nil {
		switch callErr.(type) {
		case *capability.CapabilityDenied:
			return signal{}, errCapabilityDenied(cap.Name)
		case *capability.BudgetDepleted:
			return signal{}, errBudgetExhausted()
		default:
			return signal{}, newErr("CapabilityDenied", "%v", callErr)
		}
	}
	if err := v.push(result); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

// opSendMsg pops (actor id, payload) — payload on top, actor id
// beneath — and queues an OutgoingMessage for the scheduler to
// deliver at the next round boundary (spec.md §4.1, §4.4).
func (v *Vm) opSendMsg() (signal, error) {
	payload, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	target, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	actorID, ok := target.(value.ActorID)
	if !ok {
		return signal{}, errTypeError("ActorId", value.TypeName(target))
	}
	v.outgoing = append(v.outgoing, OutgoingMessage{To: actorID, Payload: payload})
	return signal{kind: sigContinue}, nil
}

// opReceiveMsg implements the spec's documented suspension mechanism:
// in bounded mode, an empty mailbox rewinds the IP back onto this
// opcode and signals Blocked; in legacy mode it pushes Unit (spec.md
// §4.1, §9 "the only opcode that re-executes").
func (v *Vm) opReceiveMsg(top *frame, bounded bool) (signal, error) {
	if len(v.mailbox) == 0 {
		if bounded {
			top.ip--
			return signal{kind: sigBlocked}, nil
		}
		if err := v.push(value.Unit{}); err != nil {
			return signal{}, err
		}
		return signal{kind: sigContinue}, nil
	}
	msg := v.mailbox[0]
	v.mailbox = v.mailbox[1:]
	if err := v.push(msg); err != nil {
		return signal{}, err
	}
	return signal{kind: sigContinue}, nil
}

func (v *Vm) opAssert(constIdx int) (signal, error) {
	cond, err := v.pop()
	if err != nil {
		return signal{}, err
	}
	if value.Truthy(cond) {
		return signal{kind: sigContinue}, nil
	}
	if constIdx < 0 || constIdx >= len(v.module.Constants) {
		return signal{}, errInvalidConstant(constIdx)
	}
	msg := v.module.Constants[constIdx].String()
	return signal{}, errAssertionFailed(msg)
}
