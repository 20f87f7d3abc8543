package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/topicflow/internal/runtime/handlers"
	idspkg "github.com/drblury/topicflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/topicflow/internal/runtime/metadata"
	transportpkg "github.com/drblury/topicflow/internal/runtime/transport"
)

const tracerName = "github.com/drblury/topicflow"

// Producer routes application messages through the dispatch table.
type Producer interface {
	Send(ctx context.Context, msg contracts.Message, opts ...dispatch.SendOption) error
}

// Send routes msg to its channel, resolving the topic unless WithTopic is
// given. Calls must be serialized by the caller unless they come from a
// handler.
func (s *Service) Send(ctx context.Context, msg contracts.Message, opts ...dispatch.SendOption) error {
	_, err := s.Route(ctx, msg, opts...)
	return err
}

// Route is Send returning where the message went.
func (s *Service) Route(ctx context.Context, msg contracts.Message, opts ...dispatch.SendOption) (dispatch.Result, error) {
	if msg == nil {
		return dispatch.Result{}, errspkg.ErrMessageRequired
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "topicflow.Send", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(attribute.String("message.type", msg.MessageFullName()))

	res, err := s.sender.Route(ctx, msg, opts...)
	if res.Context != nil {
		span.SetAttributes(
			attribute.String("message.bus", res.Context.Bus),
			attribute.String("message.channel", res.Context.Channel),
			attribute.String("message.topic", res.Topic),
		)
	}
	s.metrics.observe(msg.MessageFullName(), res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// IsBackup reports event-sourcing backup mode.
func (s *Service) IsBackup() bool {
	return s.Conf.EventSourcingBackup
}

// SendMessage publishes msg on the channel behind handle. It is called by
// the send path once the topic is resolved.
func (s *Service) SendMessage(ctx context.Context, handle *dispatch.ChannelHandle, msg contracts.Message, topic string) error {
	ch, ok := handle.Ref.(*transportpkg.Channel)
	if !ok {
		return fmt.Errorf("channel %s/%s has no bus", handle.Bus, handle.Channel)
	}
	out, err := NewOutboundMessage(ctx, msg, topic, ch.Spec().Qos)
	if err != nil {
		return err
	}
	return ch.Bus().Publish(handle, out)
}

// NewOutboundMessage converts msg into a Watermill message carrying the
// routing metadata every bus understands. The correlation id of the message
// being handled, if any, is propagated.
func NewOutboundMessage(ctx context.Context, msg contracts.Message, topic string, qos contracts.Qos) (*message.Message, error) {
	if msg == nil {
		return nil, errspkg.ErrMessageRequired
	}
	payload, err := handlerpkg.Marshal(msg)
	if err != nil {
		return nil, err
	}

	md := metadatapkg.Metadata{}
	if extra, ok := handlerpkg.OutgoingMetadata(ctx); ok {
		md = extra.Clone()
	}
	if mc, ok := handlerpkg.FromContext(ctx); ok && mc.CorrelationID() != "" {
		md[handlerpkg.MetadataKeyCorrelationID] = mc.CorrelationID()
	}
	if md[handlerpkg.MetadataKeyCorrelationID] == "" {
		md[handlerpkg.MetadataKeyCorrelationID] = uuid.NewString()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		md[handlerpkg.MetadataKeyTraceID] = sc.TraceID().String()
		md[handlerpkg.MetadataKeySpanID] = sc.SpanID().String()
	}
	md[handlerpkg.MetadataKeyMessageType] = msg.MessageFullName()
	md[handlerpkg.MetadataKeyMessageID] = contracts.IDOf(msg).String()
	md[handlerpkg.MetadataKeyKey] = topic
	md[handlerpkg.MetadataKeyQos] = qos.String()

	out := message.NewMessage(idspkg.CreateULID(), payload)
	out.Metadata = metadatapkg.ToWatermill(md)
	out.SetContext(ctx)
	return out, nil
}

// decodeInbound rebuilds the application message carried by msg.
func (s *Service) decodeInbound(msg *message.Message) (contracts.Message, error) {
	raw := msg.Metadata.Get(handlerpkg.MetadataKeyMessageID)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing %s", errspkg.ErrUnknownInbound, handlerpkg.MetadataKeyMessageID)
	}
	id, err := contracts.ParseMessageID(raw)
	if err != nil {
		return nil, errors.Join(errspkg.ErrUnknownInbound, err)
	}
	in, ok := s.factories.New(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", errspkg.ErrUnknownInbound, msg.Metadata.Get(handlerpkg.MetadataKeyMessageType), id)
	}
	if err := handlerpkg.Unmarshal(msg.Payload, in); err != nil {
		return nil, err
	}
	in.SetMessageKey(msg.Metadata.Get(handlerpkg.MetadataKeyKey))
	return in, nil
}
