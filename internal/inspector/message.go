package inspector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Message is a parsed CDP-shaped frame. Top-level fields other than id,
// method and params (result, error, sessionId, ...) are carried through
// untouched. Params values keep JSON numbers as json.Number so they
// survive a round trip unchanged.
//
// Message values are treated as immutable: the With* helpers return a
// copy and never touch the receiver's params map.
type Message struct {
	ID     json.RawMessage
	Method string
	Params map[string]any

	extra map[string]json.RawMessage
}

// ParseMessage decodes a CDP-shaped JSON object.
func ParseMessage(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	if fields == nil {
		return Message{}, fmt.Errorf("parse message: not an object")
	}

	var msg Message
	if raw, ok := fields["id"]; ok {
		msg.ID = raw
		delete(fields, "id")
	}
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &msg.Method); err != nil {
			return Message{}, fmt.Errorf("parse message: method: %w", err)
		}
		delete(fields, "method")
	}
	if raw, ok := fields["params"]; ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&msg.Params); err != nil {
			return Message{}, fmt.Errorf("parse message: params: %w", err)
		}
		delete(fields, "params")
	}
	if len(fields) > 0 {
		msg.extra = fields
	}
	return msg, nil
}

// MarshalJSON re-assembles the frame.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.extra)+3)
	for k, v := range m.extra {
		out[k] = v
	}
	if m.ID != nil {
		out["id"] = m.ID
	}
	if m.Method != "" {
		out["method"] = m.Method
	}
	if m.Params != nil {
		out["params"] = m.Params
	}
	return marshalCompact(out)
}

// StringParam returns params[key] when it is a JSON string.
func (m Message) StringParam(key string) (string, bool) {
	if m.Params == nil {
		return "", false
	}
	s, ok := m.Params[key].(string)
	return s, ok
}

// HasParam reports whether params contains key, whatever its type.
func (m Message) HasParam(key string) bool {
	_, ok := m.Params[key]
	return ok
}

// WithParam returns a copy of m with params[key] set to value.
func (m Message) WithParam(key string, value any) Message {
	out := m
	out.Params = make(map[string]any, len(m.Params)+1)
	maps.Copy(out.Params, m.Params)
	out.Params[key] = value
	return out
}

// Result returns the raw result field of a response frame.
func (m Message) Result() json.RawMessage {
	return m.extra["result"]
}

// newReply builds a response frame for the request id.
func newReply(id json.RawMessage, result any) (Message, error) {
	raw, err := marshalCompact(result)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, extra: map[string]json.RawMessage{"result": raw}}, nil
}

// newCommand builds a request frame with a fixed numeric id.
func newCommand(id int64, method string) Message {
	return Message{ID: json.RawMessage(fmt.Sprintf("%d", id)), Method: method}
}

// newNotification builds an event frame without params.
func newNotification(method string) Message {
	return Message{Method: method}
}

// marshalCompact encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
