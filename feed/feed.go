// Package feed defines the core interfaces and types for feedflow feed
// backends. Each backend implementation (memory, jetstream) lives in its own
// sub-package and registers itself with the feed registry.
package feed

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
)

// Tag is a structured name/value pair attached to an event.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event is a single record on the feed. CreatedAt is seconds since the Unix
// epoch; stored events are delivered in CreatedAt order.
type Event struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Kind      int    `json:"kind"`
	CreatedAt int64  `json:"created_at"`
	Tags      []Tag  `json:"tags,omitempty"`
	Content   string `json:"content"`
}

// Tag returns the value of the first tag with the given name.
func (e Event) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Filter scopes a subscription. Zero-value fields do not constrain. A tag key
// mapped to an empty value list requires only tag presence.
type Filter struct {
	Authors []string
	Kinds   []int
	Tags    map[string][]string

	// Since is an inclusive lower bound on CreatedAt. Nil means no lower
	// bound: the backend's own backlog policy decides how far back delivery
	// starts.
	Since *int64
}

// WithSince returns a copy of the filter bounded below by ts.
func (f Filter) WithSince(ts int64) Filter {
	f.Since = &ts
	return f
}

// Matches reports whether the event satisfies every constraint of the filter.
func (f Filter) Matches(e Event) bool {
	if len(f.Authors) > 0 && !containsString(f.Authors, e.Author) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	for name, values := range f.Tags {
		got, ok := e.Tag(name)
		if !ok {
			return false
		}
		if len(values) > 0 && !containsString(values, got) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

// Subscription is a live, open-ended query against the feed. Events delivers
// stored events first, in the feed's chronological order, then live events.
// StoredDone is closed once every stored event has been delivered.
type Subscription interface {
	Events() <-chan Event
	StoredDone() <-chan struct{}
	Close() error
}

// Reader is the subscribing side of a feed connection.
type Reader interface {
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
	Close() error
}

// Writer is the publishing side of a feed connection. Identity is the public
// identity events published through it carry as Author.
type Writer interface {
	Identity() string
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Feed combines the reader and writer pair produced by a builder. The two
// sides are independent connections; only the writer carries an identity.
type Feed struct {
	Reader Reader
	Writer Writer
}

// Builder is the function signature for creating a feed from config. Each
// backend package provides a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Feed, error)

// Config provides the configuration values needed by feed backends. The
// interface lets backends access only the keys they need without depending on
// the full config package.
type Config interface {
	// GetFeedSystem returns the backend type name.
	GetFeedSystem() string

	// GetIdentity returns the write identity's public identity.
	GetIdentity() string

	// NATS JetStream
	GetNATSURL() string
	GetJetStreamStream() string
}
