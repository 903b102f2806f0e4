// Package bridge provides the Watermill pub/sub pair the dispatcher runs on.
// Feed subscriptions pump events onto per-handler topics; the router consumes
// them. The default channel bridge keeps dispatch in-process; the nats bridge
// moves it onto NATS so handler execution can be spread across processes.
package bridge

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// SystemChannel selects the in-process Go channel bridge.
	SystemChannel = "channel"

	// SystemNATS selects the NATS-backed bridge.
	SystemNATS = "nats"
)

// Bridge combines the publisher and subscriber pair dispatch runs on.
type Bridge struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Config provides the configuration values the bridge builders need.
type Config interface {
	GetBridgeSystem() string
	GetNATSURL() string
}

// ChannelFactory allows overriding channel bridge creation for testing.
var ChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

// Build creates the bridge selected by the config. An empty bridge system
// defaults to the channel bridge.
func Build(cfg Config, logger watermill.LoggerAdapter) (Bridge, error) {
	if cfg == nil {
		return Bridge{}, fmt.Errorf("config is required")
	}

	switch cfg.GetBridgeSystem() {
	case "", SystemChannel:
		pub, sub := ChannelFactory(gochannel.Config{}, logger)
		return Bridge{Publisher: pub, Subscriber: sub}, nil
	case SystemNATS:
		return buildNATS(cfg, logger)
	default:
		return Bridge{}, fmt.Errorf("unknown bridge system: %q", cfg.GetBridgeSystem())
	}
}

func buildNATS(cfg Config, logger watermill.LoggerAdapter) (Bridge, error) {
	url := cfg.GetNATSURL()
	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       url,
			Marshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return Bridge{}, err
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return Bridge{}, err
	}

	return Bridge{Publisher: publisher, Subscriber: subscriber}, nil
}
