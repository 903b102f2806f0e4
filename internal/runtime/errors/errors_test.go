package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrServiceRequired", ErrServiceRequired, "feedflow: service is required"},
		{"ErrConfigRequired", ErrConfigRequired, "feedflow: config is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "feedflow: logger is required"},
		{"ErrResolverRequired", ErrResolverRequired, "feedflow: handler resolver is required"},
		{"ErrReaderRequired", ErrReaderRequired, "feedflow: feed reader is required"},
		{"ErrWriterRequired", ErrWriterRequired, "feedflow: feed writer is required"},
		{"ErrEmptyHandlerSet", ErrEmptyHandlerSet, "feedflow: no handler files discovered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestDuplicateRouteError(t *testing.T) {
	err := &DuplicateRouteError{Method: "GET", Path: "/orders"}
	want := "feedflow: duplicate route GET /orders"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var dup *DuplicateRouteError
	if !errors.As(error(err), &dup) {
		t.Fatal("errors.As should match *DuplicateRouteError")
	}
}

func TestDuplicateSubscriptionError(t *testing.T) {
	err := &DuplicateSubscriptionError{ID: "orders.fulfil"}
	want := "feedflow: duplicate subscription handler orders.fulfil"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
