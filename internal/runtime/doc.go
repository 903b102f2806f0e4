/*
Package runtime provides the core dispatch infrastructure for feedflow.

# Architecture Overview

The runtime package implements a resumable-dispatch engine built on top of
Watermill. Handlers are discovered from a directory tree, wired to HTTP
routes and feed subscriptions, and each feed handler resumes from its own
checkpoint watermark across process restarts.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - Message router (Watermill)
  - Bridge publisher/subscriber pair
  - Feed backend (reader and writer connections)
  - Checkpoint tracker and subscription dispatcher
  - Route table and HTTP servers
  - Middleware chain

Startup sequences the two delivery mechanisms independently after discovery:
the route table is built eagerly, while the feed path runs in two phases. The
checkpoint tracker drains the stored backlog first; only then does the
dispatcher open live subscriptions, so watermarks are fully populated before
any handler sees traffic.

## Middleware (middleware.go)

The middleware system provides composable message processing stages:
  - CorrelationID: Ensures message traceability
  - LogMessages: Debug logging of message payloads
  - Tracer: OpenTelemetry distributed tracing
  - Metrics: Prometheus metrics collection
  - Recoverer: Panic recovery
  - Retry: Exponential backoff retry logic (opt-in)

# Sub-packages

  - bridge/: Watermill pub/sub pair dispatch runs on (channel, NATS)
  - checkpoint/: Checkpoint record codec and watermark recovery
  - config/: Service configuration with validation
  - discover/: Handler file enumeration and key derivation
  - dispatch/: Live subscription management and handler invocation
  - errors/: Sentinel errors and error types
  - handlers/: Handler module contracts and the resolver interface
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - registry/: Static module source backing discovery
  - routetable/: Route table construction with 405 synthesis

# Usage Example

	cfg := &feedflow.Config{
		FeedSystem:     "jetstream",
		Identity:       "svc-orders",
		NATSURL:        "nats://localhost:4222",
		JetStreamStream: "events",
		MetricsEnabled: true,
		MetricsPort:    9090,
	}

	svc := feedflow.NewService(cfg, logger, ctx, feedflow.ServiceDependencies{
		Routes:        routeTree,
		Subscriptions: subscriptionTree,
	})

	svc.Start(ctx)
*/
package runtime
