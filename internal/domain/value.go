package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is an arbitrary structured document: whatever the client echoes back
// from an earlier step, or a model reply whose shape is not fixed. It wraps a
// YAML node so key order survives a JSON round trip.
type Value struct {
	node *yaml.Node
}

// ValueOf wraps a parsed node.
func ValueOf(node *yaml.Node) Value {
	return Value{node: resolve(node)}
}

// ParseValue parses YAML (or JSON, which is a subset) into a Value.
// Empty input yields the zero Value.
func ParseValue(text string) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Value{}, err
	}
	return ValueOf(&doc), nil
}

// Node returns the underlying node, or nil for the zero Value.
func (v Value) Node() *yaml.Node {
	return v.node
}

// IsZero reports whether v holds no document or an explicit null.
func (v Value) IsZero() bool {
	return v.node == nil || isNull(v.node)
}

// IsMapping reports whether v is a mapping.
func (v Value) IsMapping() bool {
	return v.node != nil && v.node.Kind == yaml.MappingNode
}

// IsSequence reports whether v is a sequence.
func (v Value) IsSequence() bool {
	return v.node != nil && v.node.Kind == yaml.SequenceNode
}

// Len returns the number of entries of a mapping or sequence.
func (v Value) Len() int {
	switch {
	case v.IsMapping():
		return len(v.node.Content) / 2
	case v.IsSequence():
		return len(v.node.Content)
	default:
		return 0
	}
}

// Lookup returns the value under key when v is a mapping.
func (v Value) Lookup(key string) (Value, bool) {
	if !v.IsMapping() {
		return Value{}, false
	}
	for i := 0; i+1 < len(v.node.Content); i += 2 {
		if resolve(v.node.Content[i]).Value == key {
			return ValueOf(v.node.Content[i+1]), true
		}
	}
	return Value{}, false
}

// Entries iterates over a mapping in document order. It yields nothing for
// other kinds.
func (v Value) Entries() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if !v.IsMapping() {
			return
		}
		for i := 0; i+1 < len(v.node.Content); i += 2 {
			if !yield(resolve(v.node.Content[i]).Value, ValueOf(v.node.Content[i+1])) {
				return
			}
		}
	}
}

// Items returns the elements of a sequence. Any other value is treated as a
// one-element list and null as an empty one.
func (v Value) Items() []Value {
	switch {
	case v.IsZero():
		return nil
	case v.IsSequence():
		items := make([]Value, 0, len(v.node.Content))
		for _, n := range v.node.Content {
			items = append(items, ValueOf(n))
		}
		return items
	default:
		return []Value{v}
	}
}

// Inline renders a scalar as its text and anything else as compact JSON.
func (v Value) Inline() string {
	if v.node == nil {
		return ""
	}
	if v.node.Kind == yaml.ScalarNode {
		return v.node.Value
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return v.YAML()
	}
	return string(b)
}

// Decode decodes v into out using the YAML field tags of out.
func (v Value) Decode(out any) error {
	if v.node == nil {
		return nil
	}
	return v.node.Decode(out)
}

// YAML renders v as a block-style YAML document, whatever style the source
// used. Client payloads usually arrive as JSON.
func (v Value) YAML() string {
	if v.node == nil {
		return ""
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(blockStyle(v.node)); err != nil {
		return v.node.Value
	}
	_ = enc.Close()
	return strings.TrimRight(buf.String(), "\n")
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return v.YAML()
}

// MarshalJSON encodes v as JSON, keeping mapping order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v.node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON parses JSON through the YAML parser so object order is kept.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(string(data))
	if err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = parsed
	return nil
}

// MarshalYAML returns the wrapped node.
func (v Value) MarshalYAML() (any, error) {
	if v.node == nil {
		return nil, nil
	}
	return v.node, nil
}

// UnmarshalYAML keeps the node as parsed.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	*v = ValueOf(node)
	return nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	node = resolve(node)
	if node == nil {
		buf.WriteString("null")
		return nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(resolve(node.Content[i]).Value)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		var scalar any
		if err := node.Decode(&scalar); err != nil {
			scalar = node.Value
		}
		b, err := json.Marshal(scalar)
		if err != nil {
			// NaN and infinities have no JSON form.
			b, err = json.Marshal(node.Value)
			if err != nil {
				return err
			}
		}
		buf.Write(b)
	}
	return nil
}

// blockStyle returns a copy of node with presentation styles cleared. The
// encoder re-quotes scalars that would otherwise change type.
func blockStyle(node *yaml.Node) *yaml.Node {
	node = resolve(node)
	if node == nil {
		return nil
	}
	out := &yaml.Node{
		Kind:  node.Kind,
		Tag:   node.Tag,
		Value: node.Value,
	}
	if len(node.Content) > 0 {
		out.Content = make([]*yaml.Node, 0, len(node.Content))
		for _, child := range node.Content {
			out.Content = append(out.Content, blockStyle(child))
		}
	}
	return out
}
