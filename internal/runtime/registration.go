package runtime

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/topicflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/topicflow/internal/runtime/metadata"
)

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type,omitempty"`
	LocalOnly   bool   `json:"local_only"`
}

// Handlers lists the registered handlers in registration order.
func (s *Service) Handlers() []HandlerInfo {
	out := make([]HandlerInfo, len(s.handlers))
	for i, h := range s.handlers {
		out[i] = HandlerInfo{Name: h.Name, MessageType: h.MessageType, LocalOnly: h.LocalOnly}
	}
	return out
}

// inboundHandler decodes the messages of a joined channel and hands them to
// the dispatch goroutine. Messages nobody here can decode are acked and
// dropped; handler errors nack the message.
func (s *Service) inboundHandler(spec dispatch.ChannelSpec) message.NoPublishHandlerFunc {
	logger := s.Logger.With(loggingpkg.LogFields{"bus": spec.Bus, "channel": spec.Name})
	return func(msg *message.Message) error {
		in, err := s.decodeInbound(msg)
		if err != nil {
			if errors.Is(err, errspkg.ErrUnknownInbound) {
				logger.Trace("Skipping message without local decoder", loggingpkg.LogFields{
					"message_uuid": msg.UUID,
					"message":      msg.Metadata.Get(handlerpkg.MetadataKeyMessageType),
				})
			} else {
				logger.Error("Dropping undecodable message", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
			}
			s.metrics.dropped.WithLabelValues(spec.Bus, spec.Name).Inc()
			return nil
		}

		if s.validator != nil {
			if err := s.validator.Validate(in); err != nil {
				logger.Error("Dropping invalid message", err, loggingpkg.LogFields{
					"message_uuid": msg.UUID,
					"message":      in.MessageFullName(),
				})
				s.metrics.dropped.WithLabelValues(spec.Bus, spec.Name).Inc()
				return nil
			}
		}

		ctx := handlerpkg.WithMessageContext(msg.Context(), handlerpkg.MessageContext{
			Bus:      spec.Bus,
			Channel:  spec.Name,
			Topic:    in.MessageKey(),
			Metadata: metadatapkg.FromWatermill(msg.Metadata),
			Logger:   logger,
		})
		return s.dispatcher.Deliver(ctx, in)
	}
}
