// Package registry is the static, compiled module source backing discovery.
// Handler files register themselves under their own tree-relative key
// (extension stripped), typically from init funcs, preserving the one file,
// one handler authoring model without dynamic loading.
package registry

import (
	"fmt"
	"net/http"
	"sync"

	handlerpkg "github.com/quartzind/feedflow/internal/runtime/handlers"
)

// Registry maps logical keys to loaded handlers. It implements
// handlers.Resolver.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]http.Handler
	subs   map[string]*handlerpkg.Module
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		routes: make(map[string]http.Handler),
		subs:   make(map[string]*handlerpkg.Module),
	}
}

// Default is the process-wide registry handler files register into.
var Default = New()

// RegisterRoute stores an HTTP handler under its file key. Later
// registrations for the same key win; collision detection happens at the
// discovery layer, keyed by derived route, not by file key.
func (r *Registry) RegisterRoute(key string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[key] = h
}

// RegisterSubscription stores a feed handler module under its file key.
func (r *Registry) RegisterSubscription(key string, m *handlerpkg.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[key] = m
}

// Route implements handlers.Resolver.
func (r *Registry) Route(key string) (http.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.routes[key]
	if !ok {
		return nil, fmt.Errorf("feedflow: no route handler registered for %q", key)
	}
	return h, nil
}

// Subscription implements handlers.Resolver.
func (r *Registry) Subscription(key string) (*handlerpkg.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.subs[key]
	if !ok {
		return nil, fmt.Errorf("feedflow: no subscription handler registered for %q", key)
	}
	return m, nil
}

// RouteKeys returns the keys with registered HTTP handlers.
func (r *Registry) RouteKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	return keys
}

// SubscriptionKeys returns the keys with registered feed handler modules.
func (r *Registry) SubscriptionKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	return keys
}
