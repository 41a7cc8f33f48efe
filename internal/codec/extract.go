package codec

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// ParseError reports a model reply that is not usable structured data. Raw
// holds the reply exactly as received.
type ParseError struct {
	Detail string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return "YAML parsing failed: " + e.Detail
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Extract strips fences from raw and parses the rest. When rootKey is set and
// the document is a mapping holding that key, the value under the key is
// returned; otherwise the whole document is.
func Extract(raw, rootKey string) (domain.Value, error) {
	doc, err := parse(raw)
	if err != nil {
		return domain.Value{}, err
	}
	if rootKey != "" {
		if sub, ok := doc.Lookup(rootKey); ok {
			return sub, nil
		}
	}
	return doc, nil
}

// Decode extracts raw like Extract and decodes the result into T. The result
// must validate when T implements domain.Validator, so a reply that lacks
// rootKey is only accepted when the whole document already has the shape of T.
func Decode[T any](raw, rootKey string) (T, error) {
	var out T
	v, err := Extract(raw, rootKey)
	if err != nil {
		return out, err
	}
	if err := decodeValue(v, &out); err != nil {
		return out, &ParseError{Detail: err.Error(), Raw: raw, Err: err}
	}
	return out, nil
}

// DecodeRequired is Decode for replies whose root mapping must hold rootKey.
func DecodeRequired[T any](raw, rootKey string) (T, error) {
	var out T
	doc, err := parse(raw)
	if err != nil {
		return out, err
	}
	v, ok := doc.Lookup(rootKey)
	if !ok {
		return out, &ParseError{Detail: fmt.Sprintf("missing top-level key %q", rootKey), Raw: raw}
	}
	if err := decodeValue(v, &out); err != nil {
		return out, &ParseError{Detail: err.Error(), Raw: raw, Err: err}
	}
	return out, nil
}

func parse(raw string) (domain.Value, error) {
	doc, err := domain.ParseValue(StripFences(raw))
	if err != nil {
		return domain.Value{}, &ParseError{Detail: err.Error(), Raw: raw, Err: err}
	}
	if doc.IsZero() {
		return domain.Value{}, &ParseError{Detail: "reply holds no document", Raw: raw}
	}
	return doc, nil
}

func decodeValue[T any](v domain.Value, out *T) error {
	if v.IsZero() {
		return errors.New("value is empty")
	}
	if err := v.Decode(out); err != nil {
		return err
	}
	if val, ok := any(*out).(domain.Validator); ok {
		return val.Validate()
	}
	return nil
}
