package registry

import (
	"context"
	"net/http"
	"testing"

	"github.com/quartzind/feedflow/feed"
	handlerpkg "github.com/quartzind/feedflow/internal/runtime/handlers"
)

func TestRouteRoundTrip(t *testing.T) {
	reg := New()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	reg.RegisterRoute("a/get", h)

	got, err := reg.Route("a/get")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected registered handler")
	}

	if _, err := reg.Route("missing"); err == nil {
		t.Fatal("expected error for unregistered key")
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	reg := New()

	m := handlerpkg.NewModule(feed.Filter{Kinds: []int{1}}, func(ctx context.Context, ev feed.Event) error {
		return nil
	})
	reg.RegisterSubscription("orders/fulfil", m)

	got, err := reg.Subscription("orders/fulfil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != m {
		t.Fatal("expected the registered module")
	}

	if _, err := reg.Subscription("missing"); err == nil {
		t.Fatal("expected error for unregistered key")
	}
}

func TestKeys(t *testing.T) {
	reg := New()
	reg.RegisterRoute("a/get", http.NotFoundHandler())
	reg.RegisterSubscription("orders/fulfil", handlerpkg.NewModule(feed.Filter{}, nil))

	if keys := reg.RouteKeys(); len(keys) != 1 || keys[0] != "a/get" {
		t.Fatalf("unexpected route keys: %v", keys)
	}
	if keys := reg.SubscriptionKeys(); len(keys) != 1 || keys[0] != "orders/fulfil" {
		t.Fatalf("unexpected subscription keys: %v", keys)
	}
}
