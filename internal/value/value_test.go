package value

import "testing"

func TestHashValueMatchesEquality(t *testing.T) {
	a := NewList(Int(1), String("x"), Some(Int(2)))
	b := NewList(Int(1), String("x"), Some(Int(2)))
	c := NewList(Int(1), String("x"), None())

	if HashValue(a) != HashValue(b) {
		t.Errorf("equal values have different hashes")
	}
	if !a.Equal(b) {
		t.Errorf("expected a == b")
	}
	if HashValue(a) == HashValue(c) {
		t.Errorf("different values collided")
	}
	if a.Equal(c) {
		t.Errorf("expected a != c")
	}
}

func TestMapOrderedByKeyCanonicalJSON(t *testing.T) {
	m := NewMap()
	m.Set("zebra", Int(1))
	m.Set("apple", Int(2))

	out, err := ToCanonicalJSON(m)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"tag":"Map","payload":{"apple":{"tag":"Int","payload":2},"zebra":{"tag":"Int","payload":1}}}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestCanonicalJSONRoundtrip(t *testing.T) {
	cases := []Value{
		Unit{},
		Bool(true),
		Int(-42),
		Float(3.5),
		String("hi"),
		NewList(Int(1), Int(2)),
		&Record{TypeID: 7, Fields: []Value{Int(1), String("a")}},
		&Enum{TypeID: 2, Variant: 1, Payload: Int(9)},
		None(),
		Some(Int(4)),
		Ok(String("done")),
		Err(String("bad")),
		ActorID(12),
		FnRef(3),
	}
	for _, v := range cases {
		raw, err := ToCanonicalJSON(v)
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		back, err := FromCanonicalJSON(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if !v.Equal(back) {
			t.Errorf("roundtrip mismatch: %v vs %v (json=%s)", v, back, raw)
		}
	}
}

func TestFloatNaNEqualityTiebreak(t *testing.T) {
	n := Float(nan())
	if !n.Equal(Float(nan())) {
		t.Errorf("NaN should compare Equal to NaN per documented tiebreak")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Unit{}, false},
		{Bool(false), false},
		{Bool(true), true},
		{Int(0), false},
		{Int(1), true},
		{Float(0.0), false},
		{String(""), false},
		{String("x"), true},
		{NewList(), false},
		{NewList(Int(1)), true},
		{None(), false},
		{Some(Int(1)), true},
		{Ok(Unit{}), true},
		{Err(Unit{}), false},
		{ActorID(1), true},
		{FnRef(1), false},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestMatchTagAndPayload(t *testing.T) {
	e := &Enum{TypeID: 1, Variant: 3, Payload: Int(5)}
	if MatchTag(e) != 3 {
		t.Errorf("expected enum tag 3")
	}
	if !MatchPayload(e).Equal(Int(5)) {
		t.Errorf("expected enum payload 5")
	}

	if MatchTag(None()) != -2 {
		t.Errorf("expected None tag -2")
	}
	if MatchTag(Some(Int(1))) != -3 {
		t.Errorf("expected Some tag -3")
	}
	if MatchTag(Ok(Unit{})) != -4 {
		t.Errorf("expected Ok tag -4")
	}
	if MatchTag(Err(Unit{})) != -5 {
		t.Errorf("expected Err tag -5")
	}
	if MatchTag(Int(1)) != -1 {
		t.Errorf("expected wildcard tag -1 for non-tagged value")
	}
}

func TestModuleJSONRoundtrip(t *testing.T) {
	m := &Module{
		Name:    "demo",
		Version: "0.1.0",
		Entry:   0,
		Constants: []Value{
			Int(1), String("hi"),
		},
		Types: []TypeDef{
			{Kind: TypeDefRecord, Name: "Point", Fields: []FieldDef{{Name: "x", Type: "Int"}, {Name: "y", Type: "Int"}}},
		},
		Functions: []Function{
			{
				Name:         "main",
				Arity:        0,
				Locals:       2,
				Capabilities: []uint16{1},
				Code: []Op{
					{Code: OpLoadConst, A: 0},
					{Code: OpRet},
				},
				MatchTables: [][]MatchArm{
					{{Tag: 0, Target: 1}, {Tag: -1, Target: 2}},
				},
			},
		},
	}

	back, err := roundtripModule(m)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Equal(back) {
		t.Errorf("module roundtrip mismatch")
	}

	raw1, _ := m.ToJSON()
	raw2, _ := back.ToJSON()
	if string(raw1) != string(raw2) {
		t.Errorf("re-serialisation not byte-stable")
	}
}

func roundtripModule(m *Module) (*Module, error) {
	bin, err := m.ToBinary()
	if err != nil {
		return nil, err
	}
	return ModuleFromBinary(bin)
}
