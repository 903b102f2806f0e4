package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	feedpkg "github.com/quartzind/feedflow/feed"
	memorypkg "github.com/quartzind/feedflow/feed/memory"
	configpkg "github.com/quartzind/feedflow/internal/runtime/config"
	loggingpkg "github.com/quartzind/feedflow/internal/runtime/logging"
)

type testPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, topic)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.published))
	copy(clone, p.published)
	return clone
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

func newMemoryFeedRegistry() *feedpkg.Registry {
	reg := feedpkg.NewRegistry()
	reg.Register(memorypkg.BackendName, memorypkg.Build)
	return reg
}

func memoryConfig() *configpkg.Config {
	return &configpkg.Config{FeedSystem: memorypkg.BackendName, Identity: "self"}
}

// stubRouterRun replaces the blocking router run so Start-path tests can
// observe setup results without a live router.
func stubRouterRun(t *testing.T) {
	t.Helper()
	orig := routerRun
	routerRun = func(router *message.Router, ctx context.Context) error { return nil }
	t.Cleanup(func() { routerRun = orig })
}
