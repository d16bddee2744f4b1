package vdom

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <div>, <button>, etc.
	KindText                 // Plain text node
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// VNode is a node of an immutable rendered tree.
//
// A tree handed to a publisher must not be mutated afterwards; renderers may
// return the same *VNode for unchanged subtrees.
type VNode struct {
	Kind     VKind    // Node type
	Tag      string   // Element tag name (e.g., "div")
	Props    Props    // Ordered attributes
	Children []*VNode // Child nodes
	Text     string   // For KindText
}

// Attr represents a single attribute. Value must be JSON-encodable; event
// bindings carry a protocol.Action.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// Props is an ordered attribute set. Setting an existing key replaces the
// value in place and keeps its position.
type Props []Attr

// Get returns the value for key.
func (p Props) Get(key string) (any, bool) {
	for _, a := range p {
		if a.Key == key {
			return a.Value, true
		}
	}
	return nil, false
}

// Set returns p with key bound to value.
func (p Props) Set(key string, value any) Props {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, Attr{Key: key, Value: value})
}

// MarshalJSON writes the attributes as a JSON object in insertion order.
func (p Props) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.Value)
		if err != nil {
			return nil, fmt.Errorf("vdom: prop %q: %w", a.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// elementWire is the JSON shape of an element node.
type elementWire struct {
	Tag      string   `json:"tag"`
	Props    Props    `json:"props"`
	Children []*VNode `json:"children"`
}

// MarshalJSON encodes text nodes as JSON strings and elements as
// {"tag","props","children"} objects.
func (v *VNode) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindElement:
		w := elementWire{Tag: v.Tag, Props: v.Props, Children: v.Children}
		if w.Props == nil {
			w.Props = Props{}
		}
		if w.Children == nil {
			w.Children = []*VNode{}
		}
		return json.Marshal(w)
	default:
		return nil, fmt.Errorf("vdom: cannot encode node kind %s", v.Kind)
	}
}

// Count returns the number of nodes in the tree rooted at v.
func (v *VNode) Count() int {
	if v == nil {
		return 0
	}
	n := 1
	for _, c := range v.Children {
		n += c.Count()
	}
	return n
}
