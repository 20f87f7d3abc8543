package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/transport"
	"github.com/drblury/topicflow/transport/transporttest"
)

func TestRegister(t *testing.T) {
	Register()

	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.False(t, transport.GetCapabilities(TransportName).SupportsGuaranteed())
	assert.Equal(t, transport.NATSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	defer func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	}()

	var pubCfg nats.PublisherConfig
	var subCfg nats.SubscriberConfig
	PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return &transporttest.Subscriber{}, nil
	}

	tr, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://localhost:4222"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)

	assert.Equal(t, "nats://localhost:4222", pubCfg.URL)
	assert.Equal(t, "nats://localhost:4222", subCfg.URL)
	assert.True(t, pubCfg.JetStream.Disabled)
	assert.True(t, subCfg.JetStream.Disabled)
	assert.Len(t, pubCfg.NatsOptions, 1)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, ErrURLRequired)

	originalPub := PublisherFactory
	defer func() { PublisherFactory = originalPub }()
	boom := errors.New("connection refused")
	PublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return nil, boom
	}
	_, err = Build(context.Background(), &transporttest.Config{NATSURL: "nats://x"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
}
