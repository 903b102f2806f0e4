package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"

	feedpkg "github.com/quartzind/feedflow/feed"
	bridgepkg "github.com/quartzind/feedflow/internal/runtime/bridge"
	checkpointpkg "github.com/quartzind/feedflow/internal/runtime/checkpoint"
	configpkg "github.com/quartzind/feedflow/internal/runtime/config"
	discoverpkg "github.com/quartzind/feedflow/internal/runtime/discover"
	dispatchpkg "github.com/quartzind/feedflow/internal/runtime/dispatch"
	errspkg "github.com/quartzind/feedflow/internal/runtime/errors"
	handlerspkg "github.com/quartzind/feedflow/internal/runtime/handlers"
	loggingpkg "github.com/quartzind/feedflow/internal/runtime/logging"
	registrypkg "github.com/quartzind/feedflow/internal/runtime/registry"
	routetablepkg "github.com/quartzind/feedflow/internal/runtime/routetable"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to accept the defaults.
type ServiceDependencies struct {
	// Routes is the handler file tree wired to HTTP routes. Nil disables the
	// HTTP route surface.
	Routes fs.FS

	// Subscriptions is the handler file tree wired to feed subscriptions.
	// Nil disables feed dispatch.
	Subscriptions fs.FS

	// Resolver loads handlers by their discovery key. Defaults to the
	// process-wide static registry.
	Resolver handlerspkg.Resolver

	// FeedRegistry supplies the feed backend builders. Defaults to the
	// global registry backend packages register into.
	FeedRegistry *feedpkg.Registry

	// DispatchMetrics overrides the dispatch metrics collector. When nil and
	// metrics are enabled, one is created on the default Prometheus
	// registerer.
	DispatchMetrics *dispatchpkg.Metrics

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
}

// Service wires discovery, the checkpoint tracker, the subscription
// dispatcher, and the route table over a Watermill router and a feed backend.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	bridge bridgepkg.Bridge
	fd     feedpkg.Feed
	router *message.Router

	resolver handlerspkg.Resolver
	routesFS fs.FS
	subsFS   fs.FS

	routeTable      *routetablepkg.Table
	dispatcher      *dispatchpkg.Dispatcher
	dispatchMetrics *dispatchpkg.Metrics

	routeServer *http.Server

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service for the supplied configuration. Handler
// trees are wired when Start runs discovery; nothing touches the feed before
// that.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating feed service",
		loggingpkg.LogFields{
			"feed_system": conf.FeedSystem,
			"bridge":      conf.Bridge,
			"config":      conf,
		})

	s := &Service{
		Conf:            conf,
		Logger:          log,
		routesFS:        deps.Routes,
		subsFS:          deps.Subscriptions,
		resolver:        deps.Resolver,
		dispatchMetrics: deps.DispatchMetrics,
	}
	if s.resolver == nil {
		s.resolver = registrypkg.Default
	}

	bridge, err := bridgepkg.Build(conf, wmLogger)
	if err != nil {
		panic(err)
	}
	s.bridge = bridge

	feedRegistry := deps.FeedRegistry
	if feedRegistry == nil {
		feedRegistry = feedpkg.DefaultRegistry
	}
	fd, err := feedRegistry.Build(ctx, conf, wmLogger)
	if err != nil {
		panic(err)
	}
	s.fd = fd

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		panic(err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if s.dispatchMetrics == nil && conf.MetricsEnabled {
		s.dispatchMetrics = dispatchpkg.NewMetrics(nil)
	}

	s.registerConfiguredMiddlewares(deps)

	return s
}

// Start discovers both handler trees, recovers checkpoints, wires the
// dispatcher, and runs the underlying Watermill router until the provided
// context is cancelled. Live subscriptions are only activated once the
// router is running, after the checkpoint backlog has been drained.
func (s *Service) Start(ctx context.Context) error {
	if err := s.setupRoutes(); err != nil {
		return err
	}

	if s.subsFS != nil {
		if err := s.setupDispatch(ctx); err != nil {
			return err
		}
	}

	s.startHTTPServers()
	s.startRouteServer()

	if s.dispatcher != nil {
		go s.activateWhenRunning(ctx)
	}

	return routerRun(s.router, ctx)
}

// Stop tears down the dispatcher, router, HTTP servers, and feed
// connections. Safe to call without a prior Start.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if s.dispatcher != nil {
		if err := s.dispatcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.router != nil {
		if err := s.router.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.routeServer != nil {
		if err := s.routeServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.fd.Reader != nil {
		if err := s.fd.Reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.fd.Writer != nil {
		if err := s.fd.Writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Feed returns the reader/writer pair the service runs on, so applications
// can publish their own events through the same identity.
func (s *Service) Feed() feedpkg.Feed {
	return s.fd
}

// RouteTable returns the routing table built from the last discovery pass,
// or nil when no routes were wired.
func (s *Service) RouteTable() *routetablepkg.Table {
	return s.routeTable
}

// DispatchStats returns a snapshot of per-handler dispatch statistics.
func (s *Service) DispatchStats() dispatchpkg.MetricsSnapshot {
	return s.dispatchMetrics.GetSnapshot()
}

// setupRoutes discovers the HTTP handler tree and builds the route table. An
// empty tree is fatal to the HTTP surface alone: the server never binds, but
// feed dispatch is unaffected. Any other discovery or resolution failure
// aborts startup with no partial route table installed.
func (s *Service) setupRoutes() error {
	if s.routesFS == nil {
		return nil
	}

	routes, err := discoverpkg.Routes(s.routesFS)
	if errors.Is(err, errspkg.ErrEmptyHandlerSet) {
		s.Logger.Error("No route handler files discovered; HTTP surface disabled", err, nil)
		return nil
	}
	if err != nil {
		return err
	}

	table, err := routetablepkg.Build(routes, s.resolver)
	if err != nil {
		return err
	}

	s.routeTable = table
	s.Logger.Info("Route table built", loggingpkg.LogFields{
		"entries": len(table.Entries()),
	})
	return nil
}

// setupDispatch discovers the feed handler tree, recovers the watermark
// table, and registers every handler on the dispatcher. Duplicate handler
// identifiers are a soft failure: dispatch is disabled with an error log and
// startup keeps going, so an operator can fix the tree and retry without a
// crash loop.
func (s *Service) setupDispatch(ctx context.Context) error {
	subs, err := discoverpkg.Subscriptions(s.subsFS)
	var dup *errspkg.DuplicateSubscriptionError
	if errors.As(err, &dup) {
		s.Logger.Error("Duplicate feed handler identifier; feed dispatch disabled", err, loggingpkg.LogFields{
			"handler_id": dup.ID,
		})
		return nil
	}
	if err != nil {
		return err
	}

	tracker, err := checkpointpkg.NewTracker(s.fd.Reader, s.Conf.Identity, s.Logger)
	if err != nil {
		return err
	}
	marks, err := tracker.Run(ctx)
	if err != nil {
		return fmt.Errorf("feedflow: recovering checkpoints: %w", err)
	}

	if err := s.dispatchMetrics.Register(); err != nil {
		return err
	}

	dispatcher, err := dispatchpkg.New(s.router, s.bridge, s.fd, marks, s.Logger, s.dispatchMetrics)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		mod, err := s.resolver.Subscription(sub.Key)
		if err != nil {
			return err
		}
		if err := dispatcher.Register(sub.ID, mod); err != nil {
			return err
		}
	}

	s.dispatcher = dispatcher
	return nil
}

// activateWhenRunning opens the live subscriptions once the router has
// started its handlers, so no bridge delivery is published before a consumer
// exists for it.
func (s *Service) activateWhenRunning(ctx context.Context) {
	select {
	case <-s.router.Running():
	case <-ctx.Done():
		return
	}
	if err := s.dispatcher.Activate(ctx); err != nil {
		s.Logger.Error("Failed to activate subscription dispatcher", err, nil)
	}
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			panic(fmt.Sprintf("failed to register middleware %s: %v", name, err))
		}
	}
}

// RegisterHTTPHandler mounts an auxiliary handler (metrics, debug endpoints)
// on the mux for the given port. Servers are started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}

// startRouteServer binds the discovered route table. It never runs over an
// empty table: setupRoutes leaves the table nil in that case.
func (s *Service) startRouteServer() {
	if s.routeTable == nil || s.Conf.HTTPAddr == "" {
		return
	}

	server := &http.Server{
		Addr:    s.Conf.HTTPAddr,
		Handler: s.routeTable.Router(),
	}
	s.routeServer = server

	s.Logger.Info("Starting route server", loggingpkg.LogFields{
		"address": s.Conf.HTTPAddr,
	})
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("Route server failed", err, loggingpkg.LogFields{
				"address": s.Conf.HTTPAddr,
			})
		}
	}()
}
