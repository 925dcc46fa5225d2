package value

// OpCode enumerates the VM's closed instruction set (spec.md §3, ~50
// opcodes). Operand fields are reused across opcodes per their
// doc-comment; unused fields are zero.
type OpCode uint8

const (
	OpNop OpCode = iota

	// Constant/local/global load-store.
	OpLoadConst  // A = constant index
	OpLoadLocal  // A = local slot
	OpStoreLocal // A = local slot
	OpLoadGlobal // A = global index
	OpStoreGlobal

	// Calls.
	OpCall // A = func index, B = argc
	OpRet

	// Jumps.
	OpJmp      // A = target ip
	OpJmpIf    // A = target ip (pops cond; jump if truthy)
	OpJmpIfNot // A = target ip (pops cond; jump if falsy)

	// Pattern matching.
	OpMatch // A = match table index

	// Structured values.
	OpMakeRecord // A = type_id, B = field_count
	OpMakeEnum   // A = type_id, B = variant
	OpGetField   // A = field index
	OpMakeList   // A = element count
	OpListLen
	OpListGet
	OpListPush

	// Arithmetic / comparison / logical, numerics only unless noted.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpNot

	// Strings.
	OpConcat
	OpParseInt
	OpTryParseInt
	OpStrContains
	OpStrStartsWith

	// Capabilities.
	OpCapCall // A = cap id, B = argc

	// Actors.
	OpSpawnActor // A = func index
	OpSendMsg
	OpReceiveMsg

	// Framework.
	OpEmitUi

	// Stack bookkeeping.
	OpDup
	OpPop
	OpAssert // A = constant index (message)
	OpHalt
)

// Op is a single decoded instruction: opcode plus up to two operands.
type Op struct {
	Code OpCode
	A    int32
	B    int32
}

func (o OpCode) String() string {
	names := [...]string{
		"Nop", "LoadConst", "LoadLocal", "StoreLocal", "LoadGlobal", "StoreGlobal",
		"Call", "Ret", "Jmp", "JmpIf", "JmpIfNot", "Match",
		"MakeRecord", "MakeEnum", "GetField", "MakeList", "ListLen", "ListGet", "ListPush",
		"Add", "Sub", "Mul", "Div", "Mod", "Neg",
		"Eq", "Neq", "Lt", "Lte", "Gt", "Gte", "And", "Or", "Not",
		"Concat", "ParseInt", "TryParseInt", "StrContains", "StrStartsWith",
		"CapCall", "SpawnActor", "SendMsg", "ReceiveMsg", "EmitUi",
		"Dup", "Pop", "Assert", "Halt",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}
