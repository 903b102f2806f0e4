package runtime

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	mw := svc.correlationIDMiddleware()

	t.Run("adds missing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		msg.Metadata = message.Metadata{}
		called := false
		_, err := mw(func(m *message.Message) ([]*message.Message, error) {
			called = true
			if m.Metadata["correlation_id"] == "" {
				t.Fatal("expected correlation id to be populated")
			}
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatal("handler not invoked")
		}
	})

	t.Run("keeps existing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		msg.Metadata = message.Metadata{"correlation_id": "fixed"}
		_, err := mw(func(m *message.Message) ([]*message.Message, error) {
			if m.Metadata["correlation_id"] != "fixed" {
				t.Fatal("expected correlation id to be preserved")
			}
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestLogMessagesMiddlewareRequiresLogger(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	reg := LogMessagesMiddleware(nil)
	if _, err := reg.Builder(svc); err == nil {
		t.Fatal("expected error when no logger is available")
	}

	svc.Logger = newTestLogger()
	mw, err := reg.Builder(svc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mw == nil {
		t.Fatal("expected a middleware")
	}
}

func TestTracerMiddlewarePropagatesContext(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	mw := svc.tracerMiddleware()

	msg := message.NewMessage(idspkg.CreateULID(), []byte("payload"))
	msg.Metadata = message.Metadata{}
	before := msg.Context()
	called := false
	_, err := mw(func(m *message.Message) ([]*message.Message, error) {
		called = true
		if m.Context() == before {
			t.Fatal("expected the span context to replace the message context")
		}
		if trace.SpanFromContext(m.Context()) == nil {
			t.Fatal("expected a span on the message context")
		}
		return nil, nil
	})(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not invoked")
	}
}

func TestRetryMiddlewareConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := RetryMiddlewareConfig{}.withDefaults()
	if cfg.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 || cfg.MaxInterval <= 0 {
		t.Fatal("expected positive intervals")
	}
}

func TestRegisterMiddlewareValidation(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	if err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "noop"}); err == nil {
		t.Fatal("expected error when router is not initialised")
	}

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	svc.router = router

	if err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "empty"}); err == nil {
		t.Fatal("expected error for registration without middleware or builder")
	}

	builderErr := errors.New("boom")
	err = svc.RegisterMiddleware(MiddlewareRegistration{
		Name: "failing",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return nil, builderErr
		},
	})
	if !errors.Is(err, builderErr) {
		t.Fatalf("expected builder error, got %v", err)
	}

	// A builder returning nil middleware is skipped without error.
	err = svc.RegisterMiddleware(MiddlewareRegistration{
		Name: "disabled",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultMiddlewaresOmitRetry(t *testing.T) {
	t.Parallel()

	for _, reg := range DefaultMiddlewares() {
		if reg.Name == "retry" {
			t.Fatal("retry must be opt-in, not part of the default chain")
		}
	}
}
