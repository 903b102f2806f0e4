package handlers

import "errors"

// ErrNilHandler reports a module whose handler (or factory result) is nil.
var ErrNilHandler = errors.New("feedflow: handler module has no handler")
