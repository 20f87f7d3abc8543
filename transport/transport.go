// Package transport defines how topicflow buses are backed by message
// infrastructure. Each backend (kafka, rabbitmq, aws, ...) lives in its own
// sub-package and registers a Builder under the name used by the
// pubSubSystem configuration key.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys set on every outbound watermill message.
const (
	// MetadataKey carries the resolved routing key of the message. Backends
	// with native partitioning use it as the partition key.
	MetadataKey = "topicflow_key"
	// MetadataMessageType carries the fully qualified message type name.
	MetadataMessageType = "topicflow_message"
	// MetadataMessageID carries the factory/type identity as "factory:type".
	MetadataMessageID = "topicflow_message_id"
	// MetadataQos carries the channel QoS the message was sent with.
	MetadataQos = "topicflow_qos"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves. The subscriber is closed even when closing the
// publisher fails.
func (t Transport) Close() error {
	var pubErr, subErr error
	if t.Publisher != nil {
		pubErr = t.Publisher.Close()
	}
	if t.Subscriber != nil && any(t.Subscriber) != any(t.Publisher) {
		subErr = t.Subscriber.Close()
	}
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

// Builder creates the transport behind one bus.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports. Buses pass
// a per-bus view so each bus can use its own backend.
type Config interface {
	// GetPubSubSystem returns the transport name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// FilteredSubscriber is implemented by transports that apply a channel
// content filter when a channel is joined. The filter is opaque to topicflow.
type FilteredSubscriber interface {
	SubscribeFiltered(ctx context.Context, topic, filter string) (<-chan *message.Message, error)
}
