package errors

import sterrors "errors"

var (
	ErrServiceRequired  = sterrors.New("feedflow: service is required")
	ErrConfigRequired   = sterrors.New("feedflow: config is required")
	ErrLoggerRequired   = sterrors.New("feedflow: logger is required")
	ErrResolverRequired = sterrors.New("feedflow: handler resolver is required")
	ErrReaderRequired   = sterrors.New("feedflow: feed reader is required")
	ErrWriterRequired   = sterrors.New("feedflow: feed writer is required")

	// ErrEmptyHandlerSet reports a handler root that yielded zero candidate
	// files. An intentionally empty directory is a configuration error, not a
	// no-op: silently serving nothing is almost always a misconfiguration.
	ErrEmptyHandlerSet = sterrors.New("feedflow: no handler files discovered")
)

// DuplicateRouteError reports two discovered HTTP handler files that resolve
// to the same path and verb. Route wiring aborts entirely; no partial route
// table is installed.
type DuplicateRouteError struct {
	Method string
	Path   string
}

func (e *DuplicateRouteError) Error() string {
	return "feedflow: duplicate route " + e.Method + " " + e.Path
}

// DuplicateSubscriptionError reports two discovered feed handler files that
// resolve to the same handler identifier. Unlike duplicate routes this is a
// soft failure: setup yields no dispatcher instead of failing startup.
type DuplicateSubscriptionError struct {
	ID string
}

func (e *DuplicateSubscriptionError) Error() string {
	return "feedflow: duplicate subscription handler " + e.ID
}
