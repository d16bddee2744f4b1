package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/vango-dev/vdombridge/pkg/vdom"
)

// Codec encodes and decodes protocol messages. It is safe for concurrent use.
type Codec struct {
	tags map[Tag]struct{}
}

// NewCodec creates a Codec accepting the given action tags.
func NewCodec(tags ...Tag) *Codec {
	c := &Codec{tags: make(map[Tag]struct{}, len(tags))}
	for _, t := range tags {
		c.tags[t] = struct{}{}
	}
	return c
}

// Declared reports whether tag was declared to the codec.
func (c *Codec) Declared(tag Tag) bool {
	_, ok := c.tags[tag]
	return ok
}

// DecodeAction parses an inbound action message. Keys are matched exactly
// and may appear only once, at either level of the message.
func (c *Codec) DecodeAction(data []byte) (Action, error) {
	if !utf8.Valid(data) {
		return Action{}, decodeErr("", fmt.Errorf("%w: invalid UTF-8", ErrMalformed))
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Action{}, decodeErr("", fmt.Errorf("%w: expected JSON object", ErrMalformed))
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return Action{}, decodeErr("", err)
	}

	rawTag, ok := fields["tag"]
	if !ok || isNull(rawTag) {
		return Action{}, decodeErr("tag", ErrMissingField)
	}
	var tag Tag
	if err := json.Unmarshal(rawTag, &tag); err != nil {
		return Action{}, decodeErr("tag", fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	rawAssoc, ok := fields["associated"]
	if !ok || isNull(rawAssoc) {
		return Action{}, decodeErr("associated", ErrMissingField)
	}
	assoc, err := decodeAssociated(rawAssoc)
	if err != nil {
		return Action{}, decodeErr("associated", err)
	}

	if !c.Declared(tag) {
		return Action{}, decodeErr("tag", fmt.Errorf("%w: %q", ErrUnknownTag, string(tag)))
	}
	return Action{Tag: tag, Associated: assoc}, nil
}

// decodeObject splits a JSON object into its members without folding key
// case. A repeated key or trailing data is ErrMalformed.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformed)
	}

	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected object key", ErrMalformed)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMalformed, key)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		fields[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformed)
	}
	return fields, nil
}

// decodeAssociated decodes the string-to-string payload.
func decodeAssociated(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: associated must be an object", ErrMalformed)
	}
	members, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	assoc := make(map[string]string, len(members))
	for k, v := range members {
		var s string
		if isNull(v) {
			return nil, fmt.Errorf("%w: associated %q is null", ErrMalformed, k)
		}
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("%w: associated %q: %v", ErrMalformed, k, err)
		}
		assoc[k] = s
	}
	return assoc, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// EncodeAction encodes an action as the client would send it.
func EncodeAction(a Action) ([]byte, error) {
	if a.Associated == nil {
		a.Associated = map[string]string{}
	}
	return json.Marshal(a)
}

// Envelope is the outbound message wrapper.
type Envelope struct {
	Tree *vdom.VNode `json:"tree"`
}

// EncodeSnapshot wraps tree in an Envelope and encodes it.
func EncodeSnapshot(tree *vdom.VNode) ([]byte, error) {
	data, err := json.Marshal(Envelope{Tree: tree})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode snapshot: %w", err)
	}
	return data, nil
}

// RawEnvelope is the client-side view of an outbound message.
type RawEnvelope struct {
	Tree json.RawMessage `json:"tree"`
}

// DecodeEnvelope parses an outbound message without interpreting the tree.
func DecodeEnvelope(data []byte) (RawEnvelope, error) {
	var env RawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return RawEnvelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if len(env.Tree) == 0 {
		return RawEnvelope{}, fmt.Errorf("protocol: decode envelope: tree: %w", ErrMissingField)
	}
	return env, nil
}
