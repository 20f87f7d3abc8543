package handlers

import (
	"context"

	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/topicflow/internal/runtime/metadata"
)

// MessageContext describes where the message being handled came from.
// Injected messages carry no bus, channel or inbound metadata.
type MessageContext struct {
	Bus      string
	Channel  string
	Topic    string
	Injected bool
	Metadata metadatapkg.Metadata
	Logger   loggingpkg.ServiceLogger
}

// CloneMetadata returns a copy of the current metadata map so handlers can safely
// mutate headers for outgoing messages without touching the original map.
func (c MessageContext) CloneMetadata() metadatapkg.Metadata {
	return c.Metadata.Clone()
}

// Get retrieves a metadata value by key.
func (c MessageContext) Get(key string) string {
	return c.Metadata[key]
}

// CorrelationID returns the correlation ID from metadata, if present.
func (c MessageContext) CorrelationID() string {
	return c.Metadata[MetadataKeyCorrelationID]
}

type messageContextKey struct{}

// WithMessageContext attaches mc to ctx.
func WithMessageContext(ctx context.Context, mc MessageContext) context.Context {
	return context.WithValue(ctx, messageContextKey{}, mc)
}

// FromContext returns the message context attached to ctx, if any.
func FromContext(ctx context.Context) (MessageContext, bool) {
	mc, ok := ctx.Value(messageContextKey{}).(MessageContext)
	return mc, ok
}

type outgoingKey struct{}

// WithOutgoingMetadata attaches extra headers to every message sent with ctx.
// Reserved keys are overwritten by the sender.
func WithOutgoingMetadata(ctx context.Context, md metadatapkg.Metadata) context.Context {
	if existing, ok := OutgoingMetadata(ctx); ok {
		md = existing.WithAll(md)
	}
	return context.WithValue(ctx, outgoingKey{}, md)
}

// OutgoingMetadata returns the headers attached with WithOutgoingMetadata.
func OutgoingMetadata(ctx context.Context) (metadatapkg.Metadata, bool) {
	md, ok := ctx.Value(outgoingKey{}).(metadatapkg.Metadata)
	return md, ok
}
