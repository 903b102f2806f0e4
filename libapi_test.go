package feedflow

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestRegistryExports(t *testing.T) {
	reg := NewRegistry()
	mod := NewModule(Filter{Kinds: []int{1}}, func(ctx context.Context, ev Event) error { return nil })
	reg.RegisterSubscription("orders/new", mod)

	got, err := reg.Subscription("orders/new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != mod {
		t.Fatal("expected the registered module back")
	}
}

func TestModuleExportInvokes(t *testing.T) {
	invoked := false
	mod := NewFactoryModule(Filter{}, func() HandlerFunc {
		return func(ctx context.Context, ev Event) error {
			invoked = true
			return nil
		}
	})
	if err := mod.Invoke(context.Background(), Event{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !invoked {
		t.Fatal("factory handler not invoked")
	}
}

func TestDiscoveryExports(t *testing.T) {
	tree := fstest.MapFS{
		"orders/get.go": &fstest.MapFile{},
		"orders/new.go": &fstest.MapFile{},
	}

	routes, err := DiscoverRoutes(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routes) != 1 || routes[0].Path != "/orders" {
		t.Fatalf("unexpected routes: %+v", routes)
	}

	subs, err := DiscoverSubscriptions(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("unexpected subscriptions: %+v", subs)
	}

	if _, err := DiscoverRoutes(fstest.MapFS{}); !errors.Is(err, ErrEmptyHandlerSet) {
		t.Fatalf("expected ErrEmptyHandlerSet, got %v", err)
	}
}

func TestCheckpointExports(t *testing.T) {
	cp := NewCheckpoint("self", "orders.new", 200)
	if cp.Kind != CheckpointKind {
		t.Fatalf("unexpected kind: %d", cp.Kind)
	}

	handlerID, watermark, err := ParseCheckpoint(cp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handlerID != "orders.new" || watermark != 200 {
		t.Fatalf("unexpected parse result: %s %d", handlerID, watermark)
	}

	filter := CheckpointFilter("self")
	if !filter.Matches(cp) {
		t.Fatal("checkpoint filter must match its own records")
	}
}

func TestDispatchTopicExport(t *testing.T) {
	if DispatchTopic("orders.new") != "feedflow.dispatch.orders.new" {
		t.Fatal("unexpected dispatch topic")
	}
}

func TestCreateULIDExport(t *testing.T) {
	if CreateULID() == "" {
		t.Fatal("expected a ULID")
	}
}
