package transport

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
)

func TestTransportClose(t *testing.T) {
	pub := &mockPublisher{}
	sub := &mockSubscriber{}

	assert.NoError(t, Transport{Publisher: pub, Subscriber: sub}.Close())
	assert.Equal(t, 1, pub.closed)
	assert.Equal(t, 1, sub.closed)
}

func TestTransportCloseReportsPublisherError(t *testing.T) {
	boom := errors.New("boom")
	pub := &mockPublisher{err: boom}
	sub := &mockSubscriber{}

	assert.ErrorIs(t, Transport{Publisher: pub, Subscriber: sub}.Close(), boom)
	assert.Equal(t, 1, sub.closed)
}

func TestTransportCloseSharedPubSub(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, nil)
	tr := Transport{Publisher: pubSub, Subscriber: pubSub}

	assert.NoError(t, tr.Close())
	assert.NoError(t, Transport{}.Close())
}

func TestSupportsGuaranteed(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{name: "channel", caps: ChannelCapabilities, want: false},
		{name: "nats core", caps: NATSCapabilities, want: false},
		{name: "http", caps: HTTPCapabilities, want: false},
		{name: "kafka", caps: KafkaCapabilities, want: true},
		{name: "rabbitmq", caps: RabbitMQCapabilities, want: true},
		{name: "jetstream", caps: NATSJetStreamCapabilities, want: true},
		{name: "aws", caps: AWSCapabilities, want: true},
		{name: "zero", caps: Capabilities{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.SupportsGuaranteed())
		})
	}
}

func TestPartitionKeyCapableTransports(t *testing.T) {
	assert.True(t, KafkaCapabilities.SupportsPartitionKey)
	assert.True(t, NATSJetStreamCapabilities.SupportsPartitionKey)
	assert.True(t, NATSJetStreamCapabilities.SupportsFilter)
	assert.False(t, ChannelCapabilities.SupportsPartitionKey)
}
