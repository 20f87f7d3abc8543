// Package topicflow routes typed messages over named channels of one or
// more buses. Services are described in YAML or JSON documents that import
// schema models, declare channels with a key template and a delivery
// guarantee, and bind each message of a role to one channel.
//
// A Service runs one configuration pass when it is created: it loads the
// documents, merges the channel policies contributed by providers, decides
// which channels to join from the registered handlers and builds a dispatch
// table mapping every message identity to its channel and topic resolver.
// Start opens the channels, consumes the joined ones with a Watermill router
// and serializes inbound, injected and handler-triggered messages on one
// dispatch goroutine.
//
// # Transports
//
// Each bus is backed by a registered transport:
//   - channel: in-memory Go channels for tests and single-process setups
//   - kafka: consumer groups, the topic is the partition key
//   - rabbitmq: AMQP durable queues
//   - aws: SNS/SQS with LocalStack support
//   - nats: core NATS subjects
//   - nats-jetstream: NATS JetStream with the topic in the subject
//   - http: HTTP push between instances
//   - io: newline-delimited file persistence
//
// # Sending
//
// Send resolves the topic of a message from its channel key template, the
// initial key-resolution table of the channel and an optional per-send
// table, then publishes it. Guaranteed channels return publish errors;
// best-effort channels log them. A send on a channel that is not up returns
// a ChannelNotReadyError. In event-sourcing backup mode sends are resolved
// and dropped.
//
// # Middleware
//
// The default middleware chain wrapped around joined channels adds
// correlation IDs, debug logging, OpenTelemetry tracing, Prometheus metrics,
// retries with exponential backoff and panic recovery. Custom middleware can
// be added via ServiceDependencies.Middlewares.
package topicflow
