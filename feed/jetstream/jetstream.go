// Package jetstream provides a NATS JetStream feed backend for feedflow.
// Events are published as JSON onto per-kind subjects of one stream. Stored
// replay maps onto JetStream delivery policies: a Since bound becomes
// DeliverByStartTime, and end-of-stored is reached once the consumer's
// initial pending count has been drained.
package jetstream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/quartzind/feedflow/feed"
	idspkg "github.com/quartzind/feedflow/internal/runtime/ids"
	"github.com/quartzind/feedflow/internal/runtime/jsoncodec"
)

// BackendName is the name used to register this backend.
const BackendName = "jetstream"

func init() {
	feed.Register(BackendName, Build)
}

// Build creates a JetStream feed. Reader and writer use independent NATS
// connections, mirroring the two-identity feed contract.
func Build(ctx context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Feed, error) {
	url := cfg.GetNATSURL()
	stream := cfg.GetJetStreamStream()

	reader, err := NewReader(ctx, url, stream)
	if err != nil {
		return feed.Feed{}, err
	}

	writer, err := NewWriter(ctx, url, stream, cfg.GetIdentity())
	if err != nil {
		_ = reader.Close()
		return feed.Feed{}, err
	}

	logger.Info("JetStream feed ready", watermill.LogFields{"url": url, "stream": stream})

	return feed.Feed{Reader: reader, Writer: writer}, nil
}

func eventSubject(stream string, kind int) string {
	return stream + ".evt." + strconv.Itoa(kind)
}

// filterSubjects maps a feed filter onto JetStream subject filters. Kinds are
// encoded in the subject; authors, tags, and the time bound are matched
// client-side.
func filterSubjects(stream string, f feed.Filter) []string {
	if len(f.Kinds) == 0 {
		return []string{stream + ".evt.>"}
	}
	subjects := make([]string, 0, len(f.Kinds))
	for _, kind := range f.Kinds {
		subjects = append(subjects, eventSubject(stream, kind))
	}
	return subjects
}

// consumerConfig maps a feed filter onto an ordered consumer. A Since bound
// selects delivery by start time; otherwise the full stored stream is
// replayed, which is JetStream's own backlog default.
func consumerConfig(stream string, f feed.Filter) jetstream.OrderedConsumerConfig {
	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: filterSubjects(stream, f),
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if f.Since != nil {
		start := time.Unix(*f.Since, 0).UTC()
		cfg.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		cfg.OptStartTime = &start
	}
	return cfg
}

// Reader subscribes to feed events stored on a JetStream stream.
type Reader struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	name   string
}

// NewReader connects to NATS and ensures the event stream exists.
func NewReader(ctx context.Context, url, streamName string) (*Reader, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("feedflow: connecting reader to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("feedflow: initialising JetStream: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{streamName + ".evt.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("feedflow: ensuring stream %s: %w", streamName, err)
	}

	return &Reader{nc: nc, js: js, stream: stream, name: streamName}, nil
}

// Subscribe opens an ordered consumer scoped by the filter.
func (r *Reader) Subscribe(ctx context.Context, filter feed.Filter) (feed.Subscription, error) {
	cons, err := r.stream.OrderedConsumer(ctx, consumerConfig(r.name, filter))
	if err != nil {
		return nil, fmt.Errorf("feedflow: creating consumer: %w", err)
	}

	info, err := cons.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("feedflow: reading consumer info: %w", err)
	}

	it, err := cons.Messages()
	if err != nil {
		return nil, fmt.Errorf("feedflow: opening message iterator: %w", err)
	}

	sub := &subscription{
		filter:     filter,
		it:         it,
		out:        make(chan feed.Event),
		storedDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go sub.run(info.NumPending)
	return sub, nil
}

// Close drops the NATS connection.
func (r *Reader) Close() error {
	r.nc.Close()
	return nil
}

type subscription struct {
	filter feed.Filter
	it     jetstream.MessagesContext

	out        chan feed.Event
	storedDone chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan feed.Event   { return s.out }
func (s *subscription) StoredDone() <-chan struct{} { return s.storedDone }

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.it.Stop()
	})
	return nil
}

func (s *subscription) run(pending uint64) {
	defer close(s.out)

	storedOpen := pending > 0
	if !storedOpen {
		close(s.storedDone)
	}

	for {
		msg, err := s.it.Next()
		if err != nil {
			// Iterator stopped or connection lost; either way delivery ends.
			return
		}

		var ev feed.Event
		if err := jsoncodec.Unmarshal(msg.Data(), &ev); err == nil && s.filter.Matches(ev) {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}

		if storedOpen {
			pending--
			if pending == 0 {
				storedOpen = false
				close(s.storedDone)
			}
		}
	}
}

// Writer publishes feed events onto the stream under its own identity.
type Writer struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	stream   string
	identity string
}

// NewWriter connects an independent publishing connection.
func NewWriter(ctx context.Context, url, streamName, identity string) (*Writer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("feedflow: connecting writer to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("feedflow: initialising JetStream: %w", err)
	}

	return &Writer{nc: nc, js: js, stream: streamName, identity: identity}, nil
}

// Identity returns the writer's public identity.
func (w *Writer) Identity() string { return w.identity }

// Publish marshals the event and publishes it to its kind subject.
func (w *Writer) Publish(ctx context.Context, ev feed.Event) error {
	if ev.Author == "" {
		ev.Author = w.identity
	}
	if ev.ID == "" {
		ev.ID = idspkg.CreateULID()
	}

	payload, err := jsoncodec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("feedflow: encoding event: %w", err)
	}

	if _, err := w.js.Publish(ctx, eventSubject(w.stream, ev.Kind), payload); err != nil {
		return fmt.Errorf("feedflow: publishing event: %w", err)
	}
	return nil
}

// Close drops the NATS connection.
func (w *Writer) Close() error {
	w.nc.Close()
	return nil
}
