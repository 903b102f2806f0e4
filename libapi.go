package feedflow

import (
	feedpkg "github.com/quartzind/feedflow/feed"
	runtimepkg "github.com/quartzind/feedflow/internal/runtime"
	bridgepkg "github.com/quartzind/feedflow/internal/runtime/bridge"
	checkpointpkg "github.com/quartzind/feedflow/internal/runtime/checkpoint"
	configpkg "github.com/quartzind/feedflow/internal/runtime/config"
	discoverpkg "github.com/quartzind/feedflow/internal/runtime/discover"
	dispatchpkg "github.com/quartzind/feedflow/internal/runtime/dispatch"
	errspkg "github.com/quartzind/feedflow/internal/runtime/errors"
	handlerpkg "github.com/quartzind/feedflow/internal/runtime/handlers"
	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
	jsoncodec "github.com/quartzind/feedflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/quartzind/feedflow/internal/runtime/logging"
	registrypkg "github.com/quartzind/feedflow/internal/runtime/registry"
	routetablepkg "github.com/quartzind/feedflow/internal/runtime/routetable"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	// Feed types, re-exported for convenience; the feed package remains the
	// canonical home.
	Event      = feedpkg.Event
	Tag        = feedpkg.Tag
	Filter     = feedpkg.Filter
	Feed       = feedpkg.Feed
	FeedReader = feedpkg.Reader
	FeedWriter = feedpkg.Writer

	HandlerFunc = handlerpkg.Func
	Module      = handlerpkg.Module
	Resolver    = handlerpkg.Resolver
	Registry    = registrypkg.Registry

	Route        = discoverpkg.Route
	Subscription = discoverpkg.Subscription

	RouteTable = routetablepkg.Table
	RouteEntry = routetablepkg.Entry

	Watermarks = checkpointpkg.Watermarks
	Tracker    = checkpointpkg.Tracker

	Bridge = bridgepkg.Bridge

	Dispatcher              = dispatchpkg.Dispatcher
	DispatchMetrics         = dispatchpkg.Metrics
	DispatchHandlerStats    = dispatchpkg.HandlerStats
	DispatchMetricsSnapshot = dispatchpkg.MetricsSnapshot

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	DuplicateRouteError        = errspkg.DuplicateRouteError
	DuplicateSubscriptionError = errspkg.DuplicateSubscriptionError
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	NewModule        = handlerpkg.NewModule
	NewFactoryModule = handlerpkg.NewFactoryModule

	// Handler registration against the process-wide registry. Handler files
	// call these from init funcs, keyed by their own tree-relative path with
	// the extension stripped.
	NewRegistry          = registrypkg.New
	DefaultRegistry      = registrypkg.Default
	RegisterRoute        = registrypkg.Default.RegisterRoute
	RegisterSubscription = registrypkg.Default.RegisterSubscription

	DiscoverRoutes        = discoverpkg.Routes
	DiscoverSubscriptions = discoverpkg.Subscriptions
	RouteMethods          = discoverpkg.Methods

	BuildRouteTable = routetablepkg.Build

	NewTracker       = checkpointpkg.NewTracker
	NewCheckpoint    = checkpointpkg.NewEvent
	ParseCheckpoint  = checkpointpkg.Parse
	CheckpointFilter = checkpointpkg.Filter

	NewDispatchMetrics = dispatchpkg.NewMetrics
	DispatchTopic      = dispatchpkg.Topic

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrServiceRequired  = errspkg.ErrServiceRequired
	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrResolverRequired = errspkg.ErrResolverRequired
	ErrReaderRequired   = errspkg.ErrReaderRequired
	ErrWriterRequired   = errspkg.ErrWriterRequired
	ErrEmptyHandlerSet  = errspkg.ErrEmptyHandlerSet

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	CreateULID = idspkg.CreateULID
)

// Checkpoint protocol constants.
const (
	// CheckpointKind is the feed kind reserved for checkpoint records.
	CheckpointKind = checkpointpkg.Kind

	// TagLastHandled is the checkpoint tag name carrying the handler
	// identifier.
	TagLastHandled = checkpointpkg.TagLastHandled
)

// Bridge system names accepted by Config.Bridge.
const (
	BridgeChannel = bridgepkg.SystemChannel
	BridgeNATS    = bridgepkg.SystemNATS
)
