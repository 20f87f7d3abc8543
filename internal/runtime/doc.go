/*
Package runtime runs the routing configuration of a topicflow process.

# Architecture Overview

A Service is built in one pass from the configuration, the service
definition documents and the registered handlers:

  - servicedef loads the service documents and the schema models they import
  - policy merges the QoS, filter, initial key and join verdicts of providers
  - dispatch builds the table mapping message identities to send contexts
  - transport builds one bus per distinct bus name in the table

Channels are opened by Start. Joined channels are consumed by a Watermill
router; every inbound message is decoded and handed to the dispatch
goroutine, which also runs injected messages and the sends their handlers
trigger.

# Package Structure

## Core Service (service.go)

The configuration pass, bus lifecycle and Start/Close.

## Sending (publisher.go)

Send and Route resolve the topic through the dispatch table and publish a
Watermill message carrying the routing metadata (message type, identity,
key, QoS and correlation id).

## Inbound (registration.go)

Decoding of joined channel messages and delivery to the dispatcher.

## Middleware (middleware.go)

Wrapped around every joined channel:
  - CorrelationID: ensures message traceability
  - LogMessages: debug logging of payloads
  - Tracer: OpenTelemetry consumer spans
  - Metrics: Prometheus router metrics
  - Retry: exponential backoff
  - Recoverer: panic recovery

## Routes API (webui.go)

HTTP endpoint serving the dispatch table, joins and handlers.

# Sub-packages

  - config/: service configuration with validation
  - contracts/: message identity, keys and QoS
  - dispatch/: dispatch table, sender and dispatcher
  - errors/: sentinel errors and error types
  - handlers/: typed handler registrations and message context
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: message metadata utilities
  - policy/: channel policy providers and their aggregation
  - servicedef/: service definition and schema model loading
  - topic/: topic templates and resolver providers
  - transport/: buses over the registered transports

# Usage Example

	svc := runtime.NewService(cfg, logger, ctx, runtime.ServiceDependencies{
		Handlers: []handlers.Registration{
			handlers.MustTyped("quotes", onQuote),
		},
	})
	go svc.Start(ctx)
	<-svc.Running()
	_ = svc.Send(ctx, &QuotePublished{Venue: "XNYS", Symbol: "ACME"})
*/
package runtime
