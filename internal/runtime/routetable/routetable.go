// Package routetable turns discovered HTTP handler files into a routing
// table. Every distinct path carries a full verb set: discovered verbs get
// their resolved handlers, the rest answer 405 with no body, so diagnostic
// listings are deterministic.
package routetable

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quartzind/feedflow/internal/runtime/discover"
	handlerpkg "github.com/quartzind/feedflow/internal/runtime/handlers"
)

// Entry is one (path, verb) slot of the table.
type Entry struct {
	Method  string
	Path    string
	Handler http.Handler

	// MethodNotAllowed marks synthesized 405 entries for verbs no handler
	// file was discovered for.
	MethodNotAllowed bool
}

// Table is the immutable routing table built from one discovery pass.
type Table struct {
	entries []Entry
}

var methodNotAllowed http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
})

// Build resolves every discovered route and lays out the table: paths in
// discovery order, verbs within a path in the fixed order discovery reports.
// Routes must already have passed the duplicate guard.
func Build(routes []discover.Route, resolver handlerpkg.Resolver) (*Table, error) {
	byPath := make(map[string]map[string]http.Handler)
	var pathOrder []string

	for _, route := range routes {
		verbs, ok := byPath[route.Path]
		if !ok {
			verbs = make(map[string]http.Handler)
			byPath[route.Path] = verbs
			pathOrder = append(pathOrder, route.Path)
		}

		h, err := resolver.Route(route.Key)
		if err != nil {
			return nil, err
		}
		verbs[route.Method] = h
	}

	table := &Table{}
	for _, p := range pathOrder {
		for _, method := range discover.Methods() {
			if h, ok := byPath[p][method]; ok {
				table.entries = append(table.entries, Entry{Method: method, Path: p, Handler: h})
				continue
			}
			table.entries = append(table.entries, Entry{
				Method:           method,
				Path:             p,
				Handler:          methodNotAllowed,
				MethodNotAllowed: true,
			})
		}
	}
	return table, nil
}

// Entries returns the table rows in registration order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Router mounts the table on a chi router.
func (t *Table) Router() chi.Router {
	r := chi.NewRouter()
	for _, e := range t.entries {
		r.Method(e.Method, e.Path, e.Handler)
	}
	return r
}
