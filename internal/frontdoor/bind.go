package frontdoor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// maxFormMemory bounds the in-memory part of multipart bodies. Stage
// requests carry a base64 screenshot plus earlier results.
const maxFormMemory = 32 << 20

// fields is a request body read as either JSON or a form. Stage 2-4 clients
// post JSON; the others post forms. Every stage accepts both.
type fields struct {
	json map[string]json.RawMessage
	form url.Values
}

func bindFields(r *http.Request) (*fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		f := &fields{json: map[string]json.RawMessage{}}
		if err := json.NewDecoder(r.Body).Decode(&f.json); err != nil {
			return nil, domain.ErrInvalidRequest("invalid JSON body: " + err.Error()).WithCause(err)
		}
		return f, nil
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, domain.ErrInvalidRequest("invalid form body: " + err.Error()).WithCause(err)
	}
	return &fields{form: r.Form}, nil
}

// Has reports whether name was sent at all.
func (f *fields) Has(name string) bool {
	if f.json != nil {
		_, ok := f.json[name]
		return ok
	}
	_, ok := f.form[name]
	return ok
}

// String returns a text field. JSON values that are not strings are
// returned as their JSON text.
func (f *fields) String(name string) string {
	if f.json == nil {
		return f.form.Get(name)
	}
	raw, ok := f.json[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// Value returns a structured field. Form fields hold YAML or JSON text.
func (f *fields) Value(name string) (domain.Value, error) {
	var v domain.Value
	if f.json != nil {
		raw, ok := f.json[name]
		if !ok {
			return v, nil
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return parseField(name, s)
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, domain.ErrInvalidRequest(fmt.Sprintf("%s: %v", name, err)).WithCause(err)
		}
		return v, nil
	}
	return parseField(name, f.form.Get(name))
}

func parseField(name, text string) (domain.Value, error) {
	v, err := domain.ParseValue(text)
	if err != nil {
		return v, domain.ErrInvalidRequest(fmt.Sprintf("%s is not valid YAML: %v", name, err)).WithCause(err)
	}
	return v, nil
}

// Require fails naming every field that was not sent.
func (f *fields) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return domain.ErrInvalidRequest("missing required field(s): " + strings.Join(missing, ", "))
	}
	return nil
}

// decodeJSON reads a JSON body into out.
func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrInvalidRequest("empty request body")
		}
		return domain.ErrInvalidRequest("invalid JSON body: " + err.Error()).WithCause(err)
	}
	return nil
}
