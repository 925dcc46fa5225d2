package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// jsonValue is the canonical wire shape for a Value: a single-key
// object whose key names the variant ("tagged variants", spec.md §3).
// Keys are emitted in a fixed order and map keys are sorted so two
// semantically equal trees always serialise to byte-identical JSON.
type jsonEnvelope struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToCanonicalJSON renders v as byte-stable canonical JSON.
func ToCanonicalJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case Unit:
		buf.WriteString(`{"tag":"Unit"}`)
	case Bool:
		fmt.Fprintf(buf, `{"tag":"Bool","payload":%t}`, bool(t))
	case Int:
		fmt.Fprintf(buf, `{"tag":"Int","payload":%d}`, int64(t))
	case Float:
		// Fixed number format: always emit a decimal point or exponent
		// so Int and Float never collide on the wire.
		fmt.Fprintf(buf, `{"tag":"Float","payload":%s}`, formatFloat(float64(t)))
	case String:
		payload, err := json.Marshal(string(t))
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, `{"tag":"String","payload":%s}`, payload)
	case *List:
		buf.WriteString(`{"tag":"List","payload":[`)
		for i, it := range t.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, it); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
	case *Map:
		buf.WriteString(`{"tag":"Map","payload":{`)
		keys := t.SortedKeys()
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeValue(buf, t.Values[k]); err != nil {
				return err
			}
		}
		buf.WriteString(`}}`)
	case *Record:
		fmt.Fprintf(buf, `{"tag":"Record","type_id":%d,"payload":[`, t.TypeID)
		for i, f := range t.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, f); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
	case *Enum:
		fmt.Fprintf(buf, `{"tag":"Enum","type_id":%d,"variant":%d,"payload":`, t.TypeID, t.Variant)
		if t.Payload == nil {
			buf.WriteString("null")
		} else if err := encodeValue(buf, t.Payload); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Option:
		if !t.Some {
			buf.WriteString(`{"tag":"None"}`)
		} else {
			buf.WriteString(`{"tag":"Some","payload":`)
			if err := encodeValue(buf, t.Inner); err != nil {
				return err
			}
			buf.WriteByte('}')
		}
	case *Result:
		tag := "Err"
		if t.Ok {
			tag = "Ok"
		}
		fmt.Fprintf(buf, `{"tag":%q,"payload":`, tag)
		if err := encodeValue(buf, t.Inner); err != nil {
			return err
		}
		buf.WriteByte('}')
	case ActorID:
		fmt.Fprintf(buf, `{"tag":"ActorId","payload":%d}`, uint64(t))
	case FnRef:
		fmt.Fprintf(buf, `{"tag":"FnRef","payload":%d}`, uint32(t))
	default:
		return fmt.Errorf("value: unknown variant %T", v)
	}
	return nil
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return s
}

// FromCanonicalJSON parses the canonical envelope shape back into a Value.
func FromCanonicalJSON(data []byte) (Value, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

func decodeValue(raw map[string]json.RawMessage) (Value, error) {
	var tag string
	if err := json.Unmarshal(raw["tag"], &tag); err != nil {
		return nil, fmt.Errorf("value: missing tag: %w", err)
	}
	switch tag {
	case "Unit":
		return Unit{}, nil
	case "Bool":
		var b bool
		if err := json.Unmarshal(raw["payload"], &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case "Int":
		var i int64
		if err := json.Unmarshal(raw["payload"], &i); err != nil {
			return nil, err
		}
		return Int(i), nil
	case "Float":
		var f float64
		if err := json.Unmarshal(raw["payload"], &f); err != nil {
			return nil, err
		}
		return Float(f), nil
	case "String":
		var s string
		if err := json.Unmarshal(raw["payload"], &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case "List":
		var items []json.RawMessage
		if err := json.Unmarshal(raw["payload"], &items); err != nil {
			return nil, err
		}
		list := &List{}
		for _, it := range items {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(it, &m); err != nil {
				return nil, err
			}
			v, err := decodeValue(m)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, v)
		}
		return list, nil
	case "Map":
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw["payload"], &obj); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(obj[k], &m); err != nil {
				return nil, err
			}
			v, err := decodeValue(m)
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
		return out, nil
	case "Record":
		var typeID uint16
		if err := json.Unmarshal(raw["type_id"], &typeID); err != nil {
			return nil, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw["payload"], &items); err != nil {
			return nil, err
		}
		rec := &Record{TypeID: typeID}
		for _, it := range items {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(it, &m); err != nil {
				return nil, err
			}
			v, err := decodeValue(m)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, v)
		}
		return rec, nil
	case "Enum":
		var typeID, variant uint16
		if err := json.Unmarshal(raw["type_id"], &typeID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw["variant"], &variant); err != nil {
			return nil, err
		}
		e := &Enum{TypeID: typeID, Variant: variant}
		if raw["payload"] != nil && string(raw["payload"]) != "null" {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(raw["payload"], &m); err != nil {
				return nil, err
			}
			p, err := decodeValue(m)
			if err != nil {
				return nil, err
			}
			e.Payload = p
		}
		return e, nil
	case "None":
		return None(), nil
	case "Some":
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw["payload"], &m); err != nil {
			return nil, err
		}
		v, err := decodeValue(m)
		if err != nil {
			return nil, err
		}
		return Some(v), nil
	case "Ok", "Err":
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw["payload"], &m); err != nil {
			return nil, err
		}
		v, err := decodeValue(m)
		if err != nil {
			return nil, err
		}
		if tag == "Ok" {
			return Ok(v), nil
		}
		return Err(v), nil
	case "ActorId":
		var a uint64
		if err := json.Unmarshal(raw["payload"], &a); err != nil {
			return nil, err
		}
		return ActorID(a), nil
	case "FnRef":
		var f uint32
		if err := json.Unmarshal(raw["payload"], &f); err != nil {
			return nil, err
		}
		return FnRef(f), nil
	default:
		return nil, fmt.Errorf("value: unknown tag %q", tag)
	}
}
