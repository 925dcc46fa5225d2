package actors

import (
	"context"
	"sort"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/value"
	"boruna/internal/vm"
)

// pendingMessage is a SendMsg effect waiting for delivery at the next
// round boundary, ordered by (target, sender, sequence) per spec.md
// §4.4's determinism requirement.
type pendingMessage struct {
	target  value.ActorID
	sender  value.ActorID
	seq     uint64
	payload value.Value
}

// System is the single-threaded cooperative scheduler over a set of
// Actors sharing one Module and one capability Gateway.
type System struct {
	module  *value.Module
	gateway *capability.Gateway
	eventLog *eventlog.EventLog

	actors  map[value.ActorID]*Actor
	nextID  uint64
	sendSeq uint64
	pending []pendingMessage

	perSliceBudget int
	maxRounds      int
	round          int
}

// NewSystem constructs a scheduler. perSliceBudget bounds each actor's
// execution slice per round; maxRounds bounds total scheduler rounds
// (spec.md §4.4, §5 resource model).
func NewSystem(module *value.Module, gateway *capability.Gateway, perSliceBudget, maxRounds int) *System {
	return &System{
		module:         module,
		gateway:        gateway,
		eventLog:       eventlog.New(),
		actors:         make(map[value.ActorID]*Actor),
		perSliceBudget: perSliceBudget,
		maxRounds:      maxRounds,
	}
}

func (s *System) EventLog() *eventlog.EventLog { return s.eventLog }

func (s *System) Actor(id value.ActorID) (*Actor, bool) {
	a, ok := s.actors[id]
	return a, ok
}

func (s *System) Actors() map[value.ActorID]*Actor { return s.actors }

// SpawnRoot creates the initial, parentless actor executing funcIdx.
func (s *System) SpawnRoot(funcIdx uint32) value.ActorID {
	return s.spawn(funcIdx, 0, false)
}

func (s *System) spawn(funcIdx uint32, parent value.ActorID, hasParent bool) value.ActorID {
	id := value.ActorID(s.nextID)
	s.nextID++

	v := vm.New(s.module, s.gateway)
	v.SetEntryFunction(int(funcIdx))
	v.SetEventLog(s.eventLog)

	act := &Actor{ID: id, Parent: parent, HasParent: hasParent, Status: Ready, Vm: v}
	s.actors[id] = act
	if hasParent {
		if p, ok := s.actors[parent]; ok {
			p.Children = append(p.Children, id)
		}
	}
	s.eventLog.Append(eventlog.NewActorSpawn(uint64(id), ""))
	return id
}

// Run drives the scheduler to completion: every actor reaches
// Completed or Failed, or the system deadlocks, or maxRounds is
// exceeded (spec.md §4.4's exact algorithm).
func (s *System) Run(ctx context.Context) error {
	for {
		s.round++
		if s.round > s.maxRounds {
			return &MaxRoundsExceeded{Limit: s.maxRounds}
		}
		s.eventLog.Append(eventlog.NewSchedulerTick(uint64(s.round), 0))

		ready := s.readyIDsAscending()
		if len(ready) == 0 {
			if s.settled() {
				return nil
			}
			if len(s.pending) == 0 {
				return &Deadlock{Round: s.round}
			}
			// Blocked actors exist with nothing ready to run — fall
			// through to delivery so pending messages can unblock them.
		}

		for _, id := range ready {
			act := s.actors[id]
			s.runSlice(ctx, act)
		}

		s.deliverPending()

		if s.settled() {
			return nil
		}
	}
}

func (s *System) readyIDsAscending() []value.ActorID {
	var ids []value.ActorID
	for id, a := range s.actors {
		if a.Status == Ready {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *System) settled() bool {
	for _, a := range s.actors {
		if a.Status == Ready || a.Status == Blocked {
			return false
		}
	}
	return true
}

func (s *System) runSlice(ctx context.Context, act *Actor) {
	res := act.Vm.ExecuteBounded(ctx, s.perSliceBudget)

	if res.Kind == vm.Errored {
		// Spawn requests queued during the failing slice never
		// materialize: drain and discard them before failing the actor.
		act.Vm.DrainSpawnRequests()
		s.collectOutgoing(act)
		s.fail(act, res.Err)
		return
	}

	s.collectSpawns(act)
	s.collectOutgoing(act)

	switch res.Kind {
	case vm.Completed:
		act.Status = Completed
		act.Result = res.Value
	case vm.Yielded:
		// stays Ready; resumes next round
	case vm.Blocked:
		act.Status = Blocked
	}
}

func (s *System) collectSpawns(act *Actor) {
	for _, req := range act.Vm.DrainSpawnRequests() {
		s.spawn(req.FuncIdx, act.ID, true)
	}
}

func (s *System) collectOutgoing(act *Actor) {
	for _, msg := range act.Vm.DrainOutgoingMessages() {
		s.sendSeq++
		s.pending = append(s.pending, pendingMessage{
			target:  msg.To,
			sender:  act.ID,
			seq:     s.sendSeq,
			payload: msg.Payload,
		})
		s.eventLog.Append(eventlog.NewMessageSend(uint64(act.ID), uint64(msg.To), msg.Payload))
	}
}

// deliverPending delivers every queued message in (target, sender,
// sequence) order, then clears the queue — spec.md §4.4's fixed
// per-round delivery order is what makes replay deterministic.
func (s *System) deliverPending() {
	sort.Slice(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if a.target != b.target {
			return a.target < b.target
		}
		if a.sender != b.sender {
			return a.sender < b.sender
		}
		return a.seq < b.seq
	})
	for _, msg := range s.pending {
		target, ok := s.actors[msg.target]
		if !ok || target.Status == Completed || target.Status == Failed {
			continue // mailbox discarded: target gone or settled
		}
		target.Vm.DeliverMessage(msg.payload)
		if target.Status == Blocked {
			target.Status = Ready
		}
		s.eventLog.Append(eventlog.NewMessageReceive(uint64(msg.target), msg.payload))
	}
	s.pending = nil
}

// fail marks act Failed and cascades the failure to its whole
// descendant subtree, discarding their mailboxes and pending effects,
// then notifies the parent (or leaves the system to report it as a
// root failure) per spec.md §4.4's supervision rule.
func (s *System) fail(act *Actor, err error) {
	act.Status = Failed
	act.Err = err
	s.cascadeFail(act)

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if act.HasParent {
		if parent, ok := s.actors[act.Parent]; ok && parent.Status != Completed && parent.Status != Failed {
			s.sendSeq++
			s.pending = append(s.pending, pendingMessage{
				target:  act.Parent,
				sender:  act.ID,
				seq:     s.sendSeq,
				payload: value.Err(value.String(msg)),
			})
		}
	}
}

func (s *System) cascadeFail(act *Actor) {
	for _, childID := range act.Children {
		child, ok := s.actors[childID]
		if !ok || child.Status == Completed || child.Status == Failed {
			continue
		}
		child.Status = Failed
		child.Err = act.Err
		s.discardPendingFor(childID)
		s.cascadeFail(child)
	}
}

// discardPendingFor drops any pending outgoing/incoming traffic
// addressed to or from a just-failed actor.
func (s *System) discardPendingFor(id value.ActorID) {
	kept := s.pending[:0]
	for _, msg := range s.pending {
		if msg.target == id || msg.sender == id {
			continue
		}
		kept = append(kept, msg)
	}
	s.pending = kept
}
