// Package capability implements Boruna's capability gateway: the sole
// authority for authorizing, accounting, logging, and executing every
// external effect a running program performs (spec.md §3, §4.2).
//
// Grounded on the teacher's rights/capability bookkeeping in
// internal/kernel/kernel.go (GrantCap, CapIndex, OpRights), flattened
// to the spec's simpler per-call policy+budget model — see DESIGN.md.
package capability

import "fmt"

// Kind enumerates the capability kinds named in spec.md §3.
type Kind uint16

const (
	KindTimeNow Kind = iota + 1
	KindNetFetch
	KindFsRead
	KindFsWrite
	KindDbQuery
	KindRandom
	KindActorSpawn
	KindUiEmit
)

// names maps each Kind to its stable dotted name, used both in
// CapCall op decoding and in Policy rule lookups.
var names = map[Kind]string{
	KindTimeNow:    "time.now",
	KindNetFetch:   "net.fetch",
	KindFsRead:     "fs.read",
	KindFsWrite:    "fs.write",
	KindDbQuery:    "db.query",
	KindRandom:     "random",
	KindActorSpawn: "actor.spawn",
	KindUiEmit:     "ui.emit",
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(names))
	for k, n := range names {
		m[n] = k
	}
	return m
}()

// Capability is a resolved, nameable right to perform one external
// effect, as passed to the Gateway and logged in the EventLog.
type Capability struct {
	ID   uint16
	Kind Kind
	Name string
}

// Lookup decodes a capability id (as carried by the VM's CapCall
// opcode) into a Capability. Returns an error for unknown ids, which
// the VM surfaces as UnknownCapability.
func Lookup(id uint16) (Capability, error) {
	kind := Kind(id)
	name, ok := names[kind]
	if !ok {
		return Capability{}, fmt.Errorf("capability: unknown id %d", id)
	}
	return Capability{ID: id, Kind: kind, Name: name}, nil
}

// LookupByName resolves a capability by its stable dotted name —
// used by Policy rule keys and by config/tests.
func LookupByName(name string) (Capability, bool) {
	kind, ok := byName[name]
	if !ok {
		return Capability{}, false
	}
	return Capability{ID: uint16(kind), Kind: kind, Name: name}, true
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", uint16(k))
}
