package bridge

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	system  string
	natsURL string
}

func (c *testConfig) GetBridgeSystem() string { return c.system }
func (c *testConfig) GetNATSURL() string      { return c.natsURL }

func TestBuildChannelBridge(t *testing.T) {
	t.Run("explicit channel system", func(t *testing.T) {
		b, err := Build(&testConfig{system: SystemChannel}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.NotNil(t, b.Publisher)
		assert.NotNil(t, b.Subscriber)
	})

	t.Run("empty system defaults to channel", func(t *testing.T) {
		b, err := Build(&testConfig{}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.NotNil(t, b.Publisher)
	})

	t.Run("uses custom factory", func(t *testing.T) {
		original := ChannelFactory
		defer func() { ChannelFactory = original }()

		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		ChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
			return pubSub, pubSub
		}

		b, err := Build(&testConfig{system: SystemChannel}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, message.Publisher(pubSub), b.Publisher)
	})
}

func TestBuildUnknownSystem(t *testing.T) {
	_, err := Build(&testConfig{system: "carrier-pigeon"}, watermill.NopLogger{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bridge system")
}

func TestBuildNilConfig(t *testing.T) {
	_, err := Build(nil, watermill.NopLogger{})
	require.Error(t, err)
}
