package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"
)

// Ordered is a string-keyed map that remembers insertion order. Model output
// is keyed by section and component names, and the order the model chose is
// the order the front-end renders, so every mapping in a stage result keeps it.
//
// The zero value is ready to use.
type Ordered[V any] struct {
	keys []string
	m    map[string]V
}

// Set stores v under k. A new key is appended; an existing key keeps its
// position.
func (o *Ordered[V]) Set(k string, v V) {
	if o.m == nil {
		o.m = make(map[string]V)
	}
	if _, ok := o.m[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.m[k] = v
}

// Get returns the value stored under k.
func (o *Ordered[V]) Get(k string) (V, bool) {
	v, ok := o.m[k]
	return v, ok
}

// Has reports whether k is present.
func (o *Ordered[V]) Has(k string) bool {
	_, ok := o.m[k]
	return ok
}

// Keys returns the keys in insertion order.
func (o *Ordered[V]) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Ordered[V]) Len() int {
	return len(o.keys)
}

// All iterates over entries in insertion order.
func (o *Ordered[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range o.keys {
			if !yield(k, o.m[k]) {
				return
			}
		}
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the order keys appear in.
func (o *Ordered[V]) UnmarshalJSON(data []byte) error {
	*o = Ordered[V]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// MarshalYAML emits a mapping node in insertion order.
func (o Ordered[V]) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range o.keys {
		var vn yaml.Node
		if err := vn.Encode(o.m[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&vn,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping node, keeping document order.
func (o *Ordered[V]) UnmarshalYAML(node *yaml.Node) error {
	*o = Ordered[V]{}
	node = resolve(node)
	if node == nil || isNull(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping, got %s", node.Line, kindName(node.Kind))
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.Set(key, v)
	}
	return nil
}

// resolve unwraps document and alias nodes.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return nil
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		case 0:
			return nil
		default:
			return node
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// Validate checks every value that implements Validator.
func (o Ordered[V]) Validate() error {
	for _, k := range o.keys {
		if v, ok := any(o.m[k]).(Validator); ok {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}
