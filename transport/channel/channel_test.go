package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/transport"
	"github.com/drblury/topicflow/transport/transporttest"
)

func TestRegister(t *testing.T) {
	Register()

	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, transport.GetCapabilities(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, Capabilities())
}

func TestBuildRoundTrip(t *testing.T) {
	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := tr.Subscriber.Subscribe(ctx, "orders")
	require.NoError(t, err)

	out := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	out.Metadata.Set(transport.MetadataKey, "ORDERS/US/BOND")
	require.NoError(t, tr.Publisher.Publish("orders", out))

	select {
	case in := <-msgs:
		assert.Equal(t, "ORDERS/US/BOND", in.Metadata.Get(transport.MetadataKey))
		in.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestBuildUsesFactory(t *testing.T) {
	original := Factory
	defer func() { Factory = original }()

	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}
	var got gochannel.Config
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return pub, sub
	}

	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)
	assert.Equal(t, int64(OutputBuffer), got.OutputChannelBuffer)
}
