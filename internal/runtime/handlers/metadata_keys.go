package handlers

import "github.com/drblury/topicflow/transport"

// Metadata keys carried by every message a topicflow bus emits.
// These keys are reserved and should not be used for custom metadata.
const (
	// MetadataKeyCorrelationID tracks related messages across services.
	MetadataKeyCorrelationID = "correlation_id"

	// MetadataKeyMessageType is the fully qualified message type name.
	MetadataKeyMessageType = transport.MetadataMessageType

	// MetadataKeyMessageID is the factory:type identity of the message.
	MetadataKeyMessageID = transport.MetadataMessageID

	// MetadataKeyKey is the resolved topic the message was sent with.
	MetadataKeyKey = transport.MetadataKey

	// MetadataKeyQos is the delivery guarantee of the sending channel.
	MetadataKeyQos = transport.MetadataQos

	// MetadataKeyTraceID stores distributed tracing ID.
	MetadataKeyTraceID = "trace_id"

	// MetadataKeySpanID stores distributed tracing span ID.
	MetadataKeySpanID = "span_id"
)
