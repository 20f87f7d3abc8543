package transport

// Capabilities describes what a transport backend does with the routing
// information topicflow attaches to a message.
type Capabilities struct {
	// Name is the registered transport name.
	Name string

	// SupportsPartitionKey indicates the resolved message key is used as a
	// native partition or subject key.
	SupportsPartitionKey bool

	// SupportsDurable indicates published messages survive a consumer
	// restart.
	SupportsDurable bool

	// SupportsOrdering indicates messages on one channel (or one partition
	// key) are delivered in order.
	SupportsOrdering bool

	// SupportsAck indicates the transport supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport redelivers negatively
	// acknowledged messages.
	SupportsNack bool

	// SupportsFilter indicates the transport applies channel filters on join.
	SupportsFilter bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsGuaranteed reports whether a guaranteed-QoS channel can be honored:
// messages are durable and redelivered until acknowledged.
func (c Capabilities) SupportsGuaranteed() bool {
	return c.SupportsDurable && c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for Apache Kafka.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsPartitionKey: true,
		SupportsDurable:      true,
		SupportsOrdering:     true,
		SupportsAck:          true,
		SupportsNack:         true,
		MaxMessageSize:       1 << 20,
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP.
	RabbitMQCapabilities = Capabilities{
		Name:            "rabbitmq",
		SupportsDurable: true,
		SupportsAck:     true,
		SupportsNack:    true,
		MaxMessageSize:  128 << 20,
	}

	// NATSCapabilities for NATS Core.
	NATSCapabilities = Capabilities{
		Name:           "nats",
		SupportsAck:    true,
		MaxMessageSize: 1 << 20,
	}

	// NATSJetStreamCapabilities for NATS JetStream. The message key becomes
	// the last subject token and filters select subjects.
	NATSJetStreamCapabilities = Capabilities{
		Name:                 "nats-jetstream",
		SupportsPartitionKey: true,
		SupportsDurable:      true,
		SupportsOrdering:     true,
		SupportsAck:          true,
		SupportsNack:         true,
		SupportsFilter:       true,
		MaxMessageSize:       1 << 20,
	}

	// AWSCapabilities for AWS SNS/SQS.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsDurable: true,
		SupportsAck:     true,
		SupportsNack:    true,
		MaxMessageSize:  256 << 10,
	}

	// HTTPCapabilities for HTTP push delivery.
	HTTPCapabilities = Capabilities{
		Name:        "http",
		SupportsAck: true,
	}

	// IOCapabilities for the file-backed transport. Filters are glob
	// patterns over message keys.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsDurable:  true,
		SupportsOrdering: true,
		SupportsFilter:   true,
	}
)

// GetCapabilities returns the capabilities of a transport from the default
// registry.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
