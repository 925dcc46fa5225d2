// Package eventlog implements Boruna's versioned, canonical event log
// and its replay-divergence engine (spec.md §3 EventLog, §4.3).
package eventlog

import "boruna/internal/value"

// Kind tags each event variant in the log.
type Kind string

const (
	KindCapCall         Kind = "CapCall"
	KindCapResult       Kind = "CapResult"
	KindActorSpawn      Kind = "ActorSpawn"
	KindMessageSend     Kind = "MessageSend"
	KindMessageReceive  Kind = "MessageReceive"
	KindSchedulerTick   Kind = "SchedulerTick"
	KindUiEmit          Kind = "UiEmit"
)

// Event is one entry in the log. Exactly one of the typed fields is
// populated, selected by Kind — mirroring the tagged-variant JSON
// shape required by spec.md §3/§6.
type Event struct {
	Kind Kind

	CapCall        *CapCallEvent        `json:"-"`
	CapResult      *CapResultEvent      `json:"-"`
	ActorSpawn     *ActorSpawnEvent     `json:"-"`
	MessageSend    *MessageSendEvent    `json:"-"`
	MessageReceive *MessageReceiveEvent `json:"-"`
	SchedulerTick  *SchedulerTickEvent  `json:"-"`
	UiEmit         *UiEmitEvent         `json:"-"`
}

type CapCallEvent struct {
	Cap  string        `json:"cap"`
	Args []value.Value `json:"args"`
}

type CapResultEvent struct {
	Cap   string      `json:"cap"`
	Value value.Value `json:"value"`
}

type ActorSpawnEvent struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type MessageSendEvent struct {
	From    uint64      `json:"from"`
	To      uint64      `json:"to"`
	Payload value.Value `json:"payload"`
}

type MessageReceiveEvent struct {
	Actor   uint64      `json:"actor"`
	Payload value.Value `json:"payload"`
}

type SchedulerTickEvent struct {
	Round       uint64 `json:"round"`
	ActiveActor uint64 `json:"active_actor"`
}

type UiEmitEvent struct {
	Tree value.Value `json:"tree"`
}

// Constructors keep call sites (Gateway, VM, ActorSystem) terse.

func NewCapCall(cap string, args []value.Value) Event {
	return Event{Kind: KindCapCall, CapCall: &CapCallEvent{Cap: cap, Args: args}}
}

func NewCapResult(cap string, v value.Value) Event {
	return Event{Kind: KindCapResult, CapResult: &CapResultEvent{Cap: cap, Value: v}}
}

func NewActorSpawn(id uint64, name string) Event {
	return Event{Kind: KindActorSpawn, ActorSpawn: &ActorSpawnEvent{ID: id, Name: name}}
}

func NewMessageSend(from, to uint64, payload value.Value) Event {
	return Event{Kind: KindMessageSend, MessageSend: &MessageSendEvent{From: from, To: to, Payload: payload}}
}

func NewMessageReceive(actor uint64, payload value.Value) Event {
	return Event{Kind: KindMessageReceive, MessageReceive: &MessageReceiveEvent{Actor: actor, Payload: payload}}
}

func NewSchedulerTick(round, activeActor uint64) Event {
	return Event{Kind: KindSchedulerTick, SchedulerTick: &SchedulerTickEvent{Round: round, ActiveActor: activeActor}}
}

func NewUiEmit(tree value.Value) Event {
	return Event{Kind: KindUiEmit, UiEmit: &UiEmitEvent{Tree: tree}}
}
