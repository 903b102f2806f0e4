// Package handlers defines the loaded-handler contracts the discovery and
// wiring logic depends on. Loading itself is behind the Resolver interface so
// registries, code-generated tables, or plugin mechanisms can all serve as
// the module source.
package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/quartzind/feedflow/feed"
)

// Func handles one delivered feed event. Errors are reported to the dispatch
// path that invoked the handler; they never affect sibling handlers.
// Handlers must tolerate duplicate delivery: a lost checkpoint write means at
// most one reprocessed event after restart.
type Func func(ctx context.Context, ev feed.Event) error

// Module is a loaded feed handler: a declared filter plus either the handler
// itself or a factory producing it. Callers never branch on which shape was
// used; Invoke is the single entry point.
type Module struct {
	Filter feed.Filter

	fn      Func
	factory func() Func
	once    sync.Once
}

// NewModule wraps a direct handler.
func NewModule(filter feed.Filter, fn Func) *Module {
	return &Module{Filter: filter, fn: fn}
}

// NewFactoryModule wraps a handler factory. The factory runs once, on first
// invocation.
func NewFactoryModule(filter feed.Filter, factory func() Func) *Module {
	return &Module{Filter: filter, factory: factory}
}

// Invoke runs the handler for the event, resolving the factory shape first if
// needed.
func (m *Module) Invoke(ctx context.Context, ev feed.Event) error {
	m.once.Do(func() {
		if m.fn == nil && m.factory != nil {
			m.fn = m.factory()
		}
	})
	if m.fn == nil {
		return ErrNilHandler
	}
	return m.fn(ctx, ev)
}

// Resolver loads handler modules by the logical key discovery derived from a
// file path.
type Resolver interface {
	// Route returns the HTTP handler registered under the key.
	Route(key string) (http.Handler, error)

	// Subscription returns the feed handler module registered under the key.
	Subscription(key string) (*Module, error)
}
