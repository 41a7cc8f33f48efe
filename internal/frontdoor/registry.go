package frontdoor

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandlerRegistration binds a handler to a route. Path is the bare path
// without the /api prefix or a trailing slash.
type HandlerRegistration struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// Spellings returns the paths a route answers on: /api/p, /api/p/, /p and
// /p/. The front-end has used all four over time.
func Spellings(path string) []string {
	p := "/" + strings.Trim(path, "/")
	return []string{"/api" + p, "/api" + p + "/", p, p + "/"}
}

// Mount registers every spelling of each registration on r.
func Mount(r chi.Router, regs []HandlerRegistration) {
	for _, reg := range regs {
		for _, p := range Spellings(reg.Path) {
			r.Method(reg.Method, p, reg.Handler)
		}
	}
}
