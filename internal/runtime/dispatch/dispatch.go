// Package dispatch activates one live feed subscription per discovered
// handler and drives deliveries through the bridge onto the Watermill router.
// Each handler resumes from its recovered watermark; every successfully
// handled event republishes an updated checkpoint.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/quartzind/feedflow/feed"
	bridgepkg "github.com/quartzind/feedflow/internal/runtime/bridge"
	"github.com/quartzind/feedflow/internal/runtime/checkpoint"
	errspkg "github.com/quartzind/feedflow/internal/runtime/errors"
	"github.com/quartzind/feedflow/internal/runtime/handlers"
	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
	"github.com/quartzind/feedflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/quartzind/feedflow/internal/runtime/logging"
)

// TopicPrefix namespaces the bridge topics dispatch publishes on.
const TopicPrefix = "feedflow.dispatch."

// Topic returns the bridge topic carrying deliveries for a handler.
func Topic(handlerID string) string {
	return TopicPrefix + handlerID
}

// Dispatcher owns the live feed subscriptions and the router handlers they
// feed. Register every handler before calling Activate; registration after
// activation is an error.
type Dispatcher struct {
	router  *message.Router
	bridge  bridgepkg.Bridge
	fd      feed.Feed
	logger  loggingpkg.ServiceLogger
	metrics *Metrics

	mu        sync.Mutex
	modules   map[string]*handlers.Module
	order     []string
	marks     checkpoint.Watermarks
	subs      []feed.Subscription
	activated bool

	wg sync.WaitGroup
}

// New creates a dispatcher over the given router, bridge, and feed. The
// watermark table is the one the checkpoint tracker recovered; nil means no
// prior checkpoints. A nil metrics collector disables instrumentation.
func New(router *message.Router, bridge bridgepkg.Bridge, fd feed.Feed, marks checkpoint.Watermarks, logger loggingpkg.ServiceLogger, metrics *Metrics) (*Dispatcher, error) {
	if router == nil {
		return nil, errors.New("feedflow: router is required")
	}
	if bridge.Publisher == nil || bridge.Subscriber == nil {
		return nil, errors.New("feedflow: bridge publisher and subscriber are required")
	}
	if fd.Reader == nil {
		return nil, errspkg.ErrReaderRequired
	}
	if fd.Writer == nil {
		return nil, errspkg.ErrWriterRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if marks == nil {
		marks = make(checkpoint.Watermarks)
	}

	return &Dispatcher{
		router:  router,
		bridge:  bridge,
		fd:      fd,
		logger:  logger,
		metrics: metrics,
		modules: make(map[string]*handlers.Module),
		marks:   marks,
	}, nil
}

// Register wires a handler module under its identifier: a no-publisher
// router handler consuming the handler's bridge topic. Registering the same
// identifier twice fails with a DuplicateSubscriptionError.
func (d *Dispatcher) Register(handlerID string, mod *handlers.Module) error {
	if mod == nil {
		return handlers.ErrNilHandler
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activated {
		return errors.New("feedflow: cannot register handlers after activation")
	}
	if _, exists := d.modules[handlerID]; exists {
		return &errspkg.DuplicateSubscriptionError{ID: handlerID}
	}

	d.router.AddNoPublisherHandler(
		"dispatch_"+handlerID,
		Topic(handlerID),
		d.bridge.Subscriber,
		d.consume(handlerID, mod),
	)

	d.modules[handlerID] = mod
	d.order = append(d.order, handlerID)
	return nil
}

// HandlerIDs returns the registered handler identifiers in registration order.
func (d *Dispatcher) HandlerIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Watermark returns the current watermark for a handler identifier.
func (d *Dispatcher) Watermark(handlerID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mark, ok := d.marks[handlerID]
	return mark, ok
}

// Activate opens one feed subscription per registered handler and starts
// pumping deliveries onto the bridge. Must only be called after the
// checkpoint tracker has drained the stored backlog; a handler with a
// recovered watermark resumes just past it, one without gets the backend's
// own backlog policy.
func (d *Dispatcher) Activate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activated {
		return errors.New("feedflow: dispatcher already activated")
	}
	if len(d.order) == 0 {
		return errspkg.ErrEmptyHandlerSet
	}

	for _, handlerID := range d.order {
		filter := d.modules[handlerID].Filter
		if mark, ok := d.marks[handlerID]; ok {
			filter = filter.WithSince(mark + 1)
		}

		sub, err := d.fd.Reader.Subscribe(ctx, filter)
		if err != nil {
			return fmt.Errorf("feedflow: subscribing handler %s: %w", handlerID, err)
		}

		d.subs = append(d.subs, sub)
		d.wg.Add(1)
		go d.pump(ctx, handlerID, sub)
	}

	d.activated = true
	d.logger.Info("Dispatcher activated", loggingpkg.LogFields{
		"handlers": len(d.order),
	})
	return nil
}

// Close tears down the feed subscriptions and waits for the pumps to drain.
// The router's own handlers are stopped by stopping the router.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.wg.Wait()
	return errors.Join(errs...)
}

// pump forwards every event delivered on the subscription to the handler's
// bridge topic. Events are forwarded in delivery order; a publish failure is
// logged and the pump moves on so one bad delivery cannot wedge the
// subscription.
func (d *Dispatcher) pump(ctx context.Context, handlerID string, sub feed.Subscription) {
	defer d.wg.Done()

	topic := Topic(handlerID)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := jsoncodec.Marshal(ev)
			if err != nil {
				d.logger.Error("Failed to encode feed event for dispatch", err, loggingpkg.LogFields{
					"handler_id": handlerID,
					"event_id":   ev.ID,
				})
				continue
			}
			msg := message.NewMessage(idspkg.CreateULID(), payload)
			msg.SetContext(ctx)
			if err := d.bridge.Publisher.Publish(topic, msg); err != nil {
				d.logger.Error("Failed to publish dispatch message", err, loggingpkg.LogFields{
					"handler_id": handlerID,
					"event_id":   ev.ID,
					"topic":      topic,
				})
			}
		case <-ctx.Done():
			return
		}
	}
}

// consume builds the router handler invoking the module for each delivery.
// Handler failures are logged and acknowledged so the subscription's future
// deliveries keep flowing; sibling handlers are never affected.
func (d *Dispatcher) consume(handlerID string, mod *handlers.Module) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var ev feed.Event
		if err := jsoncodec.Unmarshal(msg.Payload, &ev); err != nil {
			d.logger.Error("Dropping undecodable dispatch payload", err, loggingpkg.LogFields{
				"handler_id":   handlerID,
				"message_uuid": msg.UUID,
			})
			return nil
		}

		if err := mod.Invoke(msg.Context(), ev); err != nil {
			d.metrics.RecordHandlerError(handlerID)
			d.logger.Error("Handler invocation failed", err, loggingpkg.LogFields{
				"handler_id": handlerID,
				"event_id":   ev.ID,
			})
			return nil
		}

		d.metrics.RecordEventHandled(handlerID, ev.CreatedAt)
		d.advance(msg.Context(), handlerID, ev.CreatedAt)
		return nil
	}
}

// advance moves the handler's watermark to the handled event's timestamp and
// publishes the matching checkpoint. A publish failure is logged but does not
// close the subscription; losing one checkpoint write risks at most one
// reprocessed event after restart.
func (d *Dispatcher) advance(ctx context.Context, handlerID string, watermark int64) {
	d.mu.Lock()
	d.marks[handlerID] = watermark
	d.mu.Unlock()

	ev := checkpoint.NewEvent(d.fd.Writer.Identity(), handlerID, watermark)
	if err := d.fd.Writer.Publish(ctx, ev); err != nil {
		d.metrics.RecordCheckpointFailure(handlerID)
		d.logger.Error("Failed to publish checkpoint", err, loggingpkg.LogFields{
			"handler_id": handlerID,
			"watermark":  watermark,
		})
		return
	}
	d.metrics.RecordCheckpointPublished(handlerID)
}
