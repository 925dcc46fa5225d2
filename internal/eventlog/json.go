package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"boruna/internal/value"
)

// wire shapes — each event serialises as a single-key object named
// after its Kind, per spec.md §3/§6 ("tagged variants").

type wireEnvelope struct {
	Version int               `json:"version"`
	Events  []json.RawMessage `json:"events"`
}

// ToJSON renders the log in the canonical v1 wire shape.
func (l *EventLog) ToJSON() ([]byte, error) {
	events := l.Snapshot()
	var buf bytes.Buffer
	buf.WriteString(`{"version":1,"events":[`)
	for i, e := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		raw, err := encodeEvent(e)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

func encodeEvent(e Event) ([]byte, error) {
	inner, err := encodeEventInner(e)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	key, _ := json.Marshal(string(e.Kind))
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(inner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeEventInner(e Event) ([]byte, error) {
	switch e.Kind {
	case KindCapCall:
		args := make([]json.RawMessage, len(e.CapCall.Args))
		for i, a := range e.CapCall.Args {
			raw, err := value.ToCanonicalJSON(a)
			if err != nil {
				return nil, err
			}
			args[i] = raw
		}
		return json.Marshal(struct {
			Args []json.RawMessage `json:"args"`
			Cap  string            `json:"cap"`
		}{Args: args, Cap: e.CapCall.Cap})
	case KindCapResult:
		val, err := value.ToCanonicalJSON(e.CapResult.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Cap   string          `json:"cap"`
			Value json.RawMessage `json:"value"`
		}{Cap: e.CapResult.Cap, Value: val})
	case KindActorSpawn:
		return json.Marshal(struct {
			ID   uint64 `json:"id"`
			Name string `json:"name"`
		}{ID: e.ActorSpawn.ID, Name: e.ActorSpawn.Name})
	case KindMessageSend:
		payload, err := value.ToCanonicalJSON(e.MessageSend.Payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			From    uint64          `json:"from"`
			Payload json.RawMessage `json:"payload"`
			To      uint64          `json:"to"`
		}{From: e.MessageSend.From, Payload: payload, To: e.MessageSend.To})
	case KindMessageReceive:
		payload, err := value.ToCanonicalJSON(e.MessageReceive.Payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Actor   uint64          `json:"actor"`
			Payload json.RawMessage `json:"payload"`
		}{Actor: e.MessageReceive.Actor, Payload: payload})
	case KindSchedulerTick:
		return json.Marshal(struct {
			ActiveActor uint64 `json:"active_actor"`
			Round       uint64 `json:"round"`
		}{ActiveActor: e.SchedulerTick.ActiveActor, Round: e.SchedulerTick.Round})
	case KindUiEmit:
		tree, err := value.ToCanonicalJSON(e.UiEmit.Tree)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Tree json.RawMessage `json:"tree"`
		}{Tree: tree})
	default:
		return nil, fmt.Errorf("eventlog: unknown event kind %q", e.Kind)
	}
}

// FromJSON parses the canonical wire shape, rejecting any version
// other than 1 and defaulting a missing version field to 1.
func FromJSON(data []byte) (*EventLog, error) {
	var raw struct {
		Version *int              `json:"version"`
		Events  []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	version := 1
	if raw.Version != nil {
		version = *raw.Version
	}
	if version != CurrentVersion {
		return nil, fmt.Errorf("eventlog: unsupported version %d", version)
	}

	log := New()
	for _, rawEvent := range raw.Events {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rawEvent, &obj); err != nil {
			return nil, err
		}
		if len(obj) != 1 {
			return nil, fmt.Errorf("eventlog: event object must have exactly one key, got %d", len(obj))
		}
		for k, v := range obj {
			e, err := decodeEvent(Kind(k), v)
			if err != nil {
				return nil, err
			}
			log.Events = append(log.Events, e)
		}
	}
	return log, nil
}

func decodeEvent(kind Kind, raw json.RawMessage) (Event, error) {
	switch kind {
	case KindCapCall:
		var w struct {
			Args []json.RawMessage `json:"args"`
			Cap  string            `json:"cap"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		args := make([]value.Value, len(w.Args))
		for i, a := range w.Args {
			v, err := value.FromCanonicalJSON(a)
			if err != nil {
				return Event{}, err
			}
			args[i] = v
		}
		return NewCapCall(w.Cap, args), nil
	case KindCapResult:
		var w struct {
			Cap   string          `json:"cap"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		v, err := value.FromCanonicalJSON(w.Value)
		if err != nil {
			return Event{}, err
		}
		return NewCapResult(w.Cap, v), nil
	case KindActorSpawn:
		var w struct {
			ID   uint64 `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		return NewActorSpawn(w.ID, w.Name), nil
	case KindMessageSend:
		var w struct {
			From    uint64          `json:"from"`
			Payload json.RawMessage `json:"payload"`
			To      uint64          `json:"to"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		v, err := value.FromCanonicalJSON(w.Payload)
		if err != nil {
			return Event{}, err
		}
		return NewMessageSend(w.From, w.To, v), nil
	case KindMessageReceive:
		var w struct {
			Actor   uint64          `json:"actor"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		v, err := value.FromCanonicalJSON(w.Payload)
		if err != nil {
			return Event{}, err
		}
		return NewMessageReceive(w.Actor, v), nil
	case KindSchedulerTick:
		var w struct {
			ActiveActor uint64 `json:"active_actor"`
			Round       uint64 `json:"round"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		return NewSchedulerTick(w.Round, w.ActiveActor), nil
	case KindUiEmit:
		var w struct {
			Tree json.RawMessage `json:"tree"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return Event{}, err
		}
		v, err := value.FromCanonicalJSON(w.Tree)
		if err != nil {
			return Event{}, err
		}
		return NewUiEmit(v), nil
	default:
		return Event{}, fmt.Errorf("eventlog: unknown event kind %q", kind)
	}
}
