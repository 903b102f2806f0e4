// Package checkpoint persists and recovers per-handler watermarks through the
// feed itself. A checkpoint is a self-authored replaceable record tagged with
// the handler identifier whose content is the last-processed event timestamp;
// only the most recent record per identifier is meaningful.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/quartzind/feedflow/feed"
	errspkg "github.com/quartzind/feedflow/internal/runtime/errors"
	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
	loggingpkg "github.com/quartzind/feedflow/internal/runtime/logging"
)

const (
	// Kind is the feed kind reserved for checkpoint records. It sits in the
	// parameterized-replaceable range: per (author, kind, tag) only the
	// latest record matters.
	Kind = 30078

	// TagLastHandled is the tag name carrying the handler identifier.
	TagLastHandled = "lastHandled"
)

// Watermarks maps handler identifiers to the last-processed event timestamp
// in seconds. Populated during backlog drain, then mutated only by each
// handler's own dispatch path; entries are never deleted during a process
// lifetime.
type Watermarks map[string]int64

// NewEvent builds the checkpoint record for a handler watermark.
func NewEvent(author, handlerID string, watermark int64) feed.Event {
	return feed.Event{
		ID:        idspkg.CreateULID(),
		Author:    author,
		Kind:      Kind,
		CreatedAt: time.Now().Unix(),
		Tags:      []feed.Tag{{Name: TagLastHandled, Value: handlerID}},
		Content:   strconv.FormatInt(watermark, 10),
	}
}

// Parse extracts the handler identifier and watermark from a checkpoint
// record.
func Parse(ev feed.Event) (string, int64, error) {
	handlerID, ok := ev.Tag(TagLastHandled)
	if !ok || handlerID == "" {
		return "", 0, errors.New("feedflow: checkpoint event has no handler tag")
	}
	watermark, err := strconv.ParseInt(ev.Content, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("feedflow: malformed checkpoint content %q: %w", ev.Content, err)
	}
	return handlerID, watermark, nil
}

// Filter scopes a subscription to the given identity's own checkpoint
// records.
func Filter(identity string) feed.Filter {
	return feed.Filter{
		Authors: []string{identity},
		Kinds:   []int{Kind},
		Tags:    map[string][]string{TagLastHandled: nil},
	}
}

// Tracker recovers the watermark table from the feed's stored checkpoint
// events before any live handler subscription opens.
type Tracker struct {
	reader   feed.Reader
	identity string
	logger   loggingpkg.ServiceLogger
}

// NewTracker builds a tracker reading checkpoints authored by identity.
func NewTracker(reader feed.Reader, identity string, logger loggingpkg.ServiceLogger) (*Tracker, error) {
	if reader == nil {
		return nil, errspkg.ErrReaderRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return &Tracker{reader: reader, identity: identity, logger: logger}, nil
}

// Run drains stored checkpoint events and returns the populated watermark
// table once the feed signals end of stored events. A later record for the
// same handler identifier overwrites the earlier one; malformed records are
// logged and skipped so one corrupt checkpoint cannot block all handlers.
func (t *Tracker) Run(ctx context.Context) (Watermarks, error) {
	sub, err := t.reader.Subscribe(ctx, Filter(t.identity))
	if err != nil {
		return nil, fmt.Errorf("feedflow: subscribing to checkpoints: %w", err)
	}
	defer sub.Close()

	marks := make(Watermarks)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil, errors.New("feedflow: checkpoint subscription closed before end of stored events")
			}
			handlerID, watermark, err := Parse(ev)
			if err != nil {
				t.logger.Error("Skipping malformed checkpoint event", err, loggingpkg.LogFields{
					"event_id": ev.ID,
				})
				continue
			}
			marks[handlerID] = watermark
		case <-sub.StoredDone():
			t.logger.Info("Checkpoint backlog drained", loggingpkg.LogFields{
				"handlers": len(marks),
			})
			return marks, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
