// Package memory provides an in-process feed backend for feedflow. Events are
// kept in memory, so stored-event replay works within a single process
// lifetime. Useful for testing and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/quartzind/feedflow/feed"
	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
)

// BackendName is the name used to register this backend.
const BackendName = "memory"

func init() {
	feed.Register(BackendName, Build)
}

// Build creates a new in-memory feed. Reader and writer share one store.
func Build(ctx context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Feed, error) {
	b := New(cfg.GetIdentity())
	return feed.Feed{Reader: b, Writer: b}, nil
}

// Backend is an in-memory feed. It implements both feed.Reader and
// feed.Writer; subscriptions replay matching stored events in CreatedAt
// order, signal end-of-stored, then deliver live events.
type Backend struct {
	identity string

	mu     sync.Mutex
	stored []feed.Event
	subs   map[*subscription]struct{}
	closed bool
}

// New creates an empty in-memory feed publishing under the given identity.
func New(identity string) *Backend {
	return &Backend{
		identity: identity,
		subs:     make(map[*subscription]struct{}),
	}
}

// Identity returns the writer's public identity.
func (b *Backend) Identity() string { return b.identity }

// Publish stores the event and fans it out to matching live subscriptions.
// The event's Author defaults to the backend identity and its ID to a fresh
// ULID when unset.
func (b *Backend) Publish(ctx context.Context, ev feed.Event) error {
	if ev.Author == "" {
		ev.Author = b.identity
	}
	if ev.ID == "" {
		ev.ID = idspkg.CreateULID()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("feedflow: memory feed is closed")
	}

	b.stored = append(b.stored, ev)
	for sub := range b.subs {
		if sub.filter.Matches(ev) {
			sub.enqueue(ev)
		}
	}
	return nil
}

// Subscribe opens a subscription scoped by the filter. The stored snapshot is
// taken atomically with registration, so no event is lost or duplicated
// across the stored/live boundary.
func (b *Backend) Subscribe(ctx context.Context, filter feed.Filter) (feed.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("feedflow: memory feed is closed")
	}

	var backlog []feed.Event
	for _, ev := range b.stored {
		if filter.Matches(ev) {
			backlog = append(backlog, ev)
		}
	}
	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].CreatedAt < backlog[j].CreatedAt
	})

	sub := &subscription{
		backend:    b,
		filter:     filter,
		out:        make(chan feed.Event),
		storedDone: make(chan struct{}),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	b.subs[sub] = struct{}{}

	go sub.run(backlog)
	return sub, nil
}

// Close tears down every open subscription and rejects further use.
func (b *Backend) Close() error {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *Backend) remove(sub *subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

type subscription struct {
	backend *Backend
	filter  feed.Filter

	out        chan feed.Event
	storedDone chan struct{}

	mu   sync.Mutex
	live []feed.Event

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan feed.Event   { return s.out }
func (s *subscription) StoredDone() <-chan struct{} { return s.storedDone }

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.backend.remove(s)
	})
	return nil
}

// enqueue appends a live event; called with the backend lock held, so live
// ordering follows publish ordering.
func (s *subscription) enqueue(ev feed.Event) {
	s.mu.Lock()
	s.live = append(s.live, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) run(backlog []feed.Event) {
	defer close(s.out)

	for _, ev := range backlog {
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
	close(s.storedDone)

	for {
		s.mu.Lock()
		pending := s.live
		s.live = nil
		s.mu.Unlock()

		for _, ev := range pending {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}
