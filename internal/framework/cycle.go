package framework

import (
	"bytes"

	"boruna/internal/value"
)

// CycleRecord is one update+view step, the unit replay verification
// compares across runs (spec.md §8 D1: same inputs -> same outputs).
type CycleRecord struct {
	Index    int
	Msg      value.Value
	OldState value.Value
	NewState value.Value
	View     value.Value
	Effects  []value.Value
}

func (c CycleRecord) canonicalBytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range []value.Value{c.Msg, c.OldState, c.NewState, c.View} {
		b, err := value.ToCanonicalJSON(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	for _, e := range c.Effects {
		b, err := value.ToCanonicalJSON(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Snapshot is a point-in-time view of a Runtime suitable for
// persistence or diffing, independent of in-memory Vm state.
type Snapshot struct {
	CycleCount int
	State      value.Value
}

func (r *Runtime) Snapshot() Snapshot {
	return Snapshot{CycleCount: len(r.cycles), State: r.state}
}

// ReplayDivergence describes the first cycle at which two Runtimes'
// histories diverge.
type ReplayDivergence struct {
	Index int
}

// ReplayVerify compares this Runtime's cycle history against
// other's, cycle by cycle, returning nil if they are identical and a
// ReplayDivergence pointing at the first mismatch otherwise.
func (r *Runtime) ReplayVerify(other *Runtime) (*ReplayDivergence, error) {
	n := len(r.cycles)
	if len(other.cycles) < n {
		n = len(other.cycles)
	}
	for i := 0; i < n; i++ {
		a, err := r.cycles[i].canonicalBytes()
		if err != nil {
			return nil, err
		}
		b, err := other.cycles[i].canonicalBytes()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(a, b) {
			return &ReplayDivergence{Index: i}, nil
		}
	}
	if len(r.cycles) != len(other.cycles) {
		return &ReplayDivergence{Index: n}, nil
	}
	return nil, nil
}
