package domain

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Item is the outcome of one unit of work in a multi-item stage. A failed
// item encodes as {"error": "..."} in place of its value so the rest of the
// stage result is still usable.
type Item[T any] struct {
	Value T
	Err   string
}

// ItemOK wraps a successful value.
func ItemOK[T any](v T) Item[T] {
	return Item[T]{Value: v}
}

// ItemError records a message as the item's outcome.
func ItemError[T any](msg string) Item[T] {
	return Item[T]{Err: msg}
}

// Failed reports whether the item carries an error.
func (it Item[T]) Failed() bool {
	return it.Err != ""
}

type itemError struct {
	Error string `json:"error" yaml:"error"`
}

// MarshalJSON implements json.Marshaler.
func (it Item[T]) MarshalJSON() ([]byte, error) {
	if it.Failed() {
		return json.Marshal(itemError{Error: it.Err})
	}
	return json.Marshal(it.Value)
}

// UnmarshalJSON recognises the error placeholder and otherwise decodes T.
func (it *Item[T]) UnmarshalJSON(data []byte) error {
	*it = Item[T]{}
	var probe map[string]json.RawMessage
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) && json.Unmarshal(data, &probe) == nil && len(probe) == 1 {
		if raw, ok := probe["error"]; ok {
			var msg string
			if json.Unmarshal(raw, &msg) == nil {
				it.Err = msg
				return nil
			}
		}
	}
	return json.Unmarshal(data, &it.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (it Item[T]) MarshalYAML() (any, error) {
	if it.Failed() {
		return itemError{Error: it.Err}, nil
	}
	return it.Value, nil
}

// UnmarshalYAML recognises the error placeholder and otherwise decodes T.
func (it *Item[T]) UnmarshalYAML(node *yaml.Node) error {
	*it = Item[T]{}
	n := resolve(node)
	if n != nil && n.Kind == yaml.MappingNode && len(n.Content) == 2 {
		if k := resolve(n.Content[0]); k.Value == "error" {
			if v := resolve(n.Content[1]); v.Kind == yaml.ScalarNode {
				it.Err = v.Value
				return nil
			}
		}
	}
	return node.Decode(&it.Value)
}
