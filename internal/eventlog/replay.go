package eventlog

import "fmt"

// ReplayResult is the outcome of comparing two logs.
type ReplayResult struct {
	Identical bool
	Diverged  *Divergence
}

// Divergence reports where two logs first disagree.
type Divergence struct {
	Index    int
	Original Event
	Candidate Event
}

// ReplayEngine compares event logs for divergence (spec.md §4.3).
type ReplayEngine struct{}

// Verify compares only the capability event subsequence (CapCall,
// CapResult) of original vs candidate, pairwise.
func (ReplayEngine) Verify(original, candidate *EventLog) ReplayResult {
	return compareSequences(original.CapEvents(), candidate.CapEvents())
}

// VerifyFull compares every event in both logs.
func (ReplayEngine) VerifyFull(original, candidate *EventLog) ReplayResult {
	return compareSequences(original.Snapshot(), candidate.Snapshot())
}

func compareSequences(a, b []Event) ReplayResult {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if !eventsEqual(a[i], b[i]) {
			return ReplayResult{Diverged: &Divergence{Index: i, Original: a[i], Candidate: b[i]}}
		}
	}
	if len(a) != len(b) {
		idx := n
		var orig, cand Event
		if idx < len(a) {
			orig = a[idx]
		}
		if idx < len(b) {
			cand = b[idx]
		}
		return ReplayResult{Diverged: &Divergence{Index: idx, Original: orig, Candidate: cand}}
	}
	return ReplayResult{Identical: true}
}

func eventsEqual(a, b Event) bool {
	if a.Kind != b.Kind {
		return false
	}
	ea, err := encodeEvent(a)
	if err != nil {
		return false
	}
	eb, err := encodeEvent(b)
	if err != nil {
		return false
	}
	return string(ea) == string(eb)
}

func (d Divergence) String() string {
	return fmt.Sprintf("diverged at index %d: original=%s candidate=%s", d.Index, d.Original.Kind, d.Candidate.Kind)
}
