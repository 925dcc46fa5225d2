package value

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// moduleJSON mirrors Module but with lexicographically-ordered struct
// tags (Go's encoding/json already emits struct fields in declaration
// order; we declare them alphabetically here so the wire shape is
// deterministic per spec.md §6: "orders object keys lexicographically").
type moduleJSON struct {
	Constants []json.RawMessage `json:"constants"`
	Entry     uint32            `json:"entry"`
	Functions []functionJSON    `json:"functions"`
	Globals   []json.RawMessage `json:"globals"`
	Name      string            `json:"name"`
	Types     []typeDefJSON     `json:"types"`
	Version   string            `json:"version"`
}

type functionJSON struct {
	Arity        uint8           `json:"arity"`
	Capabilities []uint16        `json:"capabilities"`
	Code         []opJSON        `json:"code"`
	Locals       uint16          `json:"locals"`
	MatchTables  [][]matchArmJSON `json:"match_tables"`
	Name         string          `json:"name"`
}

type opJSON struct {
	A    int32  `json:"a"`
	B    int32  `json:"b"`
	Code OpCode `json:"code"`
}

type matchArmJSON struct {
	Tag    int32  `json:"tag"`
	Target uint32 `json:"target"`
}

type typeDefJSON struct {
	Fields   []fieldDefJSON   `json:"fields,omitempty"`
	Kind     TypeDefKind      `json:"kind"`
	Name     string           `json:"name"`
	Variants []variantDefJSON `json:"variants,omitempty"`
}

type fieldDefJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type variantDefJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ToJSON renders m as canonical JSON (spec.md §6: module persistence format b).
func (m *Module) ToJSON() ([]byte, error) {
	mj := moduleJSON{
		Entry:   m.Entry,
		Name:    m.Name,
		Version: m.Version,
	}
	for _, c := range m.Constants {
		raw, err := ToCanonicalJSON(c)
		if err != nil {
			return nil, err
		}
		mj.Constants = append(mj.Constants, raw)
	}
	for _, g := range m.Globals {
		raw, err := ToCanonicalJSON(g)
		if err != nil {
			return nil, err
		}
		mj.Globals = append(mj.Globals, raw)
	}
	for _, t := range m.Types {
		tj := typeDefJSON{Kind: t.Kind, Name: t.Name}
		for _, f := range t.Fields {
			tj.Fields = append(tj.Fields, fieldDefJSON{Name: f.Name, Type: f.Type})
		}
		for _, v := range t.Variants {
			tj.Variants = append(tj.Variants, variantDefJSON{Name: v.Name, Type: v.Type})
		}
		mj.Types = append(mj.Types, tj)
	}
	for _, f := range m.Functions {
		fj := functionJSON{
			Arity:        f.Arity,
			Capabilities: f.Capabilities,
			Locals:       f.Locals,
			Name:         f.Name,
		}
		for _, op := range f.Code {
			fj.Code = append(fj.Code, opJSON{Code: op.Code, A: op.A, B: op.B})
		}
		for _, table := range f.MatchTables {
			var tbl []matchArmJSON
			for _, arm := range table {
				tbl = append(tbl, matchArmJSON{Tag: arm.Tag, Target: arm.Target})
			}
			fj.MatchTables = append(fj.MatchTables, tbl)
		}
		mj.Functions = append(mj.Functions, fj)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(mj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ModuleFromJSON parses the canonical JSON module shape.
func ModuleFromJSON(data []byte) (*Module, error) {
	var mj moduleJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return nil, err
	}
	m := &Module{Entry: mj.Entry, Name: mj.Name, Version: mj.Version}
	for _, raw := range mj.Constants {
		v, err := decodeRaw(raw)
		if err != nil {
			return nil, err
		}
		m.Constants = append(m.Constants, v)
	}
	for _, raw := range mj.Globals {
		v, err := decodeRaw(raw)
		if err != nil {
			return nil, err
		}
		m.Globals = append(m.Globals, v)
	}
	for _, tj := range mj.Types {
		td := TypeDef{Kind: tj.Kind, Name: tj.Name}
		for _, f := range tj.Fields {
			td.Fields = append(td.Fields, FieldDef{Name: f.Name, Type: f.Type})
		}
		for _, v := range tj.Variants {
			td.Variants = append(td.Variants, VariantDef{Name: v.Name, Type: v.Type})
		}
		m.Types = append(m.Types, td)
	}
	for _, fj := range mj.Functions {
		fn := Function{
			Arity:        fj.Arity,
			Capabilities: fj.Capabilities,
			Locals:       fj.Locals,
			Name:         fj.Name,
		}
		for _, op := range fj.Code {
			fn.Code = append(fn.Code, Op{Code: op.Code, A: op.A, B: op.B})
		}
		for _, table := range fj.MatchTables {
			var tbl []MatchArm
			for _, arm := range table {
				tbl = append(tbl, MatchArm{Tag: arm.Tag, Target: arm.Target})
			}
			fn.MatchTables = append(fn.MatchTables, tbl)
		}
		m.Functions = append(m.Functions, fn)
	}
	return m, nil
}

func decodeRaw(raw json.RawMessage) (Value, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return decodeValue(m)
}

// binary magic + version for the .axbc persistence format.
const axbcMagic = "AXBC"
const axbcVersion = 1

// ToBinary serialises m to the .axbc binary format: a length-prefixed
// canonical JSON payload behind a fixed magic/version header. The
// header exists so readers can reject foreign files fast; the payload
// itself reuses the canonical JSON codec rather than a bespoke binary
// layout, since both persistence formats must round-trip identically
// (spec.md §6, invariant S1) and a second independent encoder would
// only be another place for the two to drift apart.
func (m *Module) ToBinary() ([]byte, error) {
	payload, err := m.ToJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(axbcMagic)
	if err := binary.Write(&buf, binary.BigEndian, uint32(axbcVersion)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint64(len(payload))); err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// ModuleFromBinary parses the .axbc format written by ToBinary.
func ModuleFromBinary(data []byte) (*Module, error) {
	if len(data) < len(axbcMagic)+4+8 {
		return nil, fmt.Errorf("value: truncated axbc header")
	}
	if string(data[:len(axbcMagic)]) != axbcMagic {
		return nil, fmt.Errorf("value: bad axbc magic")
	}
	off := len(axbcMagic)
	version := binary.BigEndian.Uint32(data[off:])
	off += 4
	if version != axbcVersion {
		return nil, fmt.Errorf("value: unsupported axbc version %d", version)
	}
	length := binary.BigEndian.Uint64(data[off:])
	off += 8
	if uint64(len(data)-off) < length {
		return nil, fmt.Errorf("value: truncated axbc payload")
	}
	return ModuleFromJSON(data[off : off+int(length)])
}

// Equal reports whether two modules are structurally identical —
// used to verify invariant S1, deserialize(serialize(m)) == m.
func (m *Module) Equal(o *Module) bool {
	a, err := m.ToJSON()
	if err != nil {
		return false
	}
	b, err := o.ToJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
