package dispatch

import (
	"context"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

// Engine is the transport side of the send path.
type Engine interface {
	SendMessage(ctx context.Context, handle *ChannelHandle, msg contracts.Message, topic string) error
	// IsBackup reports event-sourcing backup mode, in which sends are
	// resolved but not emitted.
	IsBackup() bool
}

type sendOptions struct {
	topic    string
	hasTopic bool
	raw      topic.RawKRT
	props    map[string]string
}

// SendOption customizes one send. Later options override earlier ones.
type SendOption struct {
	opts sendOptions
}

func (o *sendOptions) apply(opt SendOption) {
	if opt.opts.hasTopic {
		o.topic, o.hasTopic = opt.opts.topic, true
	}
	if opt.opts.raw != nil {
		o.raw = opt.opts.raw
	}
	if opt.opts.props != nil {
		o.props = opt.opts.props
	}
}

// WithTopic sends with an explicit topic. The resolver is bypassed and the
// message key is set to t unchanged.
func WithTopic(t string) SendOption {
	return SendOption{opts: sendOptions{topic: t, hasTopic: true}}
}

// WithRawKRT supplies a per-send key-resolution table in wire form. Sends
// with a raw table do not allocate once the channel's topic is cached.
func WithRawKRT(krt topic.RawKRT) SendOption {
	return SendOption{opts: sendOptions{raw: krt}}
}

// WithKRT supplies a per-send key-resolution table.
func WithKRT(krt map[string]string) SendOption {
	return SendOption{opts: sendOptions{props: krt}}
}

// Sender routes outbound messages through the dispatch table. It is not
// safe for concurrent use; sends happen on the dispatch goroutine or from a
// single producer goroutine.
type Sender struct {
	table  *Table
	engine Engine
	logger logging.ServiceLogger
}

// NewSender returns a Sender routing through table and publishing with engine.
func NewSender(table *Table, engine Engine, logger logging.ServiceLogger) *Sender {
	return &Sender{table: table, engine: engine, logger: logging.OrNop(logger)}
}

// Result describes where a message was routed.
type Result struct {
	Context *SendContext
	Topic   string
	// Emitted is false in backup mode.
	Emitted bool
}

// Send routes msg. See Route for the returned details.
func (s *Sender) Send(ctx context.Context, msg contracts.Message, opts ...SendOption) error {
	_, err := s.Route(ctx, msg, opts...)
	return err
}

// Route resolves the channel and topic of msg and hands it to the engine.
func (s *Sender) Route(ctx context.Context, msg contracts.Message, opts ...SendOption) (Result, error) {
	if msg == nil {
		return Result{}, errspkg.ErrMessageRequired
	}
	id := contracts.IDOf(msg)
	sc, ok := s.table.Lookup(id)
	if !ok {
		return Result{}, &errspkg.UnregisteredMessageError{Message: msg.MessageFullName(), ID: uint64(id)}
	}

	handle := sc.Handle()
	backup := s.engine.IsBackup()
	if handle == nil && !backup {
		return Result{Context: sc}, &errspkg.ChannelNotReadyError{Bus: sc.Bus, Channel: sc.Channel, Message: sc.MessageType}
	}

	var o sendOptions
	for _, opt := range opts {
		o.apply(opt)
	}

	t, resolved, err := sc.topicFor(msg, &o)
	if err != nil {
		return Result{Context: sc}, err
	}
	if resolved {
		msg.SetMessageKey(t)
	}

	if backup {
		s.logger.Trace("Send suppressed in backup mode", logging.LogFields{
			"message": sc.MessageType,
			"channel": sc.Channel,
			"topic":   t,
		})
		return Result{Context: sc, Topic: t}, nil
	}
	if err := s.engine.SendMessage(ctx, handle, msg, t); err != nil {
		return Result{Context: sc, Topic: t}, err
	}
	return Result{Context: sc, Topic: t, Emitted: true}, nil
}

// topicFor returns the topic of msg. resolved is false when the channel has
// no resolver and no explicit topic was given; the message key is then left
// as the caller set it.
func (sc *SendContext) topicFor(msg contracts.Message, o *sendOptions) (t string, resolved bool, err error) {
	switch {
	case o.hasTopic:
		return o.topic, true, nil
	case sc.Resolver == nil:
		return msg.MessageKey(), false, nil
	case o.raw == nil && o.props != nil:
		t, err = sc.Resolver.ResolveTopicWithProperties(msg, o.props)
		return t, err == nil, err
	}
	ap, ok := sc.Resolver.(topic.Appender)
	if !ok {
		t, err = sc.Resolver.ResolveTopic(msg, o.raw)
		return t, err == nil, err
	}
	sc.topicBuf, err = ap.AppendTopic(sc.topicBuf[:0], msg, o.raw)
	if err != nil {
		return "", false, err
	}
	if string(sc.topicBuf) != sc.lastTopic {
		sc.lastTopic = string(sc.topicBuf)
	}
	return sc.lastTopic, true, nil
}
