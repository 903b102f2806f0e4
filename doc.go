// Package feedflow is a resumable-dispatch engine on top of Watermill: it
// discovers business-logic handlers from a directory tree and wires them to
// two delivery mechanisms, HTTP routes and a publish/subscribe event feed,
// while guaranteeing each feed handler resumes only from events it has not
// yet processed, even across process restarts.
//
// Handler files follow a path convention. A file whose trailing segment is an
// HTTP verb (get, post, put, patch, delete) becomes a route: orders/get.go
// serves GET /orders. Every other file under the subscription tree becomes a
// feed handler whose identifier is its path with separators normalized to
// dots: orders/new.go checkpoints as orders.new. Handlers register their
// implementations into a Registry under the same key, preserving the one
// file, one handler authoring model without dynamic loading.
//
// Resume works through the feed itself. After every successfully handled
// event the engine publishes a self-authored checkpoint record tagged with
// the handler identifier and carrying the event's timestamp. On startup a
// checkpoint tracker replays those records, builds the watermark table, and
// only after the feed signals the end of stored events does the dispatcher
// open live subscriptions, each bounded below by its handler's watermark.
//
// # Feed backends
//
// Feeds are pluggable through the feed registry:
//   - memory: in-process store for testing and local development
//   - jetstream: NATS JetStream backed feed with durable replay
//
// Import a backend package for its side effect to register it:
//
//	import _ "github.com/quartzind/feedflow/feed/memory"
//
// # Bridge
//
// Deliveries run over a Watermill publisher/subscriber pair selected by
// Config.Bridge: in-process Go channels by default, or NATS to spread
// handler execution across processes.
//
// # Middleware
//
// The default middleware chain includes correlation ID injection, structured
// logging, OpenTelemetry tracing, Prometheus metrics, and panic recovery.
// Retry is opt-in via RetryMiddleware. Custom middleware can be added through
// ServiceDependencies.Middlewares.
//
// A minimal setup fills Config, registers handlers, creates a Service with
// the handler trees, and calls Start:
//
//	feedflow.RegisterSubscription("orders/new", feedflow.NewModule(
//		feedflow.Filter{Kinds: []int{1}},
//		handleOrder,
//	))
//
//	svc := feedflow.NewService(cfg, logger, ctx, feedflow.ServiceDependencies{
//		Subscriptions: subscriptionTree,
//	})
//	svc.Start(ctx)
package feedflow
