// Package jetstream provides the NATS JetStream transport. Every channel
// gets its own subject space inside one stream: the resolved message key
// becomes the trailing subject tokens, and channel filters select among them.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/topicflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when Config.StreamName is empty.
	DefaultStreamName = "TOPICFLOW"

	// DefaultMaxDeliver is the default max delivery attempts.
	DefaultMaxDeliver = 5

	// DefaultAckWait is the default ack wait timeout.
	DefaultAckWait = 30 * time.Second

	// HeaderUUID carries the watermill message UUID.
	HeaderUUID = "topicflow_uuid"

	// emptyKeyToken stands in for messages sent without a key.
	emptyKeyToken = "_"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("jetstream: transport is closed")

func init() {
	Register()
}

// Register registers the JetStream transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a new NATS JetStream transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{URL: cfg.GetNATSURL()}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  t,
		Subscriber: t,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds NATS JetStream-specific configuration.
type Config struct {
	URL string

	// StreamName is the JetStream stream holding every channel.
	StreamName string

	// MaxDeliver is the maximum number of delivery attempts.
	MaxDeliver int

	// AckWait is the duration to wait for acknowledgment.
	AckWait time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Subject returns the subject a message with the given key is stored under.
// Key separators ('/') become subject token separators.
func (c Config) Subject(topic, key string) string {
	return c.withDefaults().StreamName + "." + subjectToken(topic) + "." + keyTokens(key)
}

// FilterSubject returns the subject pattern a channel is consumed with. An
// empty filter selects every key.
func (c Config) FilterSubject(topic, filter string) string {
	if filter == "" {
		filter = ">"
	}
	return c.withDefaults().StreamName + "." + subjectToken(topic) + "." + filter
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '/':
			return '_'
		}
		return r
	}, s)
}

func keyTokens(key string) string {
	if key == "" {
		return emptyKeyToken
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		if p == "" {
			parts[i] = emptyKeyToken
			continue
		}
		parts[i] = subjectToken(p)
	}
	return strings.Join(parts, ".")
}

// Transport implements Publisher and Subscriber for NATS JetStream.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	subscriptions map[string]*nats.Subscription
	subMu         sync.Mutex

	closed     bool
	closedMu   sync.RWMutex
	closedChan chan struct{}
}

// New connects to NATS and makes sure the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("topicflow-jetstream"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	t := &Transport{
		nc:            nc,
		js:            js,
		config:        cfg,
		logger:        logger,
		subscriptions: make(map[string]*nats.Subscription),
		closedChan:    make(chan struct{}),
	}

	if err := t.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return t, nil
}

func (t *Transport) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      t.config.StreamName,
		Subjects:  []string{t.config.StreamName + ".>"},
		MaxAge:    7 * 24 * time.Hour,
		Replicas:  t.config.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := t.js.AddStream(streamCfg); err == nil {
		return nil
	}
	if _, err := t.js.UpdateStream(streamCfg); err != nil {
		return fmt.Errorf("ensure stream %s: %w", t.config.StreamName, err)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	t.closedMu.RLock()
	defer t.closedMu.RUnlock()
	return t.closed
}

// Publish stores messages under the subject derived from their key.
func (t *Transport) Publish(topic string, messages ...*message.Message) error {
	if t.isClosed() {
		return ErrClosed
	}

	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		headers.Set(HeaderUUID, msg.UUID)

		natsMsg := &nats.Msg{
			Subject: t.config.Subject(topic, msg.Metadata.Get(transport.MetadataKey)),
			Data:    msg.Payload,
			Header:  headers,
		}
		if _, err := t.js.PublishMsg(natsMsg); err != nil {
			return fmt.Errorf("publish to JetStream: %w", err)
		}
	}

	return nil
}

// Subscribe consumes every key of a channel.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return t.SubscribeFiltered(ctx, topic, "")
}

// SubscribeFiltered consumes the keys of a channel matching filter, a NATS
// subject pattern over the key tokens such as "ORDERS.US.*".
func (t *Transport) SubscribeFiltered(ctx context.Context, topic, filter string) (<-chan *message.Message, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}

	subject := t.config.FilterSubject(topic, filter)
	consumerName := "topicflow_" + subjectToken(topic)

	consumerCfg := &nats.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    t.config.MaxDeliver,
		AckWait:       t.config.AckWait,
		DeliverPolicy: nats.DeliverAllPolicy,
	}
	if _, err := t.js.AddConsumer(t.config.StreamName, consumerCfg); err != nil {
		if _, err := t.js.UpdateConsumer(t.config.StreamName, consumerCfg); err != nil {
			return nil, fmt.Errorf("create consumer %s: %w", consumerName, err)
		}
	}

	sub, err := t.js.PullSubscribe(subject, consumerName)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	t.subMu.Lock()
	t.subscriptions[topic] = sub
	t.subMu.Unlock()

	output := make(chan *message.Message)
	go t.fetchMessages(ctx, sub, output, topic)
	return output, nil
}

func (t *Transport) fetchMessages(ctx context.Context, sub *nats.Subscription, output chan<- *message.Message, topic string) {
	defer close(output)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closedChan:
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			t.logger.Error("Failed to fetch messages", err, watermill.LogFields{"topic": topic})
			continue
		}

		for _, natsMsg := range msgs {
			if !t.deliver(ctx, natsMsg, output) {
				return
			}
		}
	}
}

func (t *Transport) deliver(ctx context.Context, natsMsg *nats.Msg, output chan<- *message.Message) bool {
	wmMsg := toWatermill(natsMsg)
	wmMsg.SetContext(ctx)

	select {
	case output <- wmMsg:
	case <-ctx.Done():
		return false
	}

	select {
	case <-wmMsg.Acked():
		if err := natsMsg.Ack(); err != nil {
			t.logger.Error("Failed to ack", err, nil)
		}
	case <-wmMsg.Nacked():
		if err := natsMsg.Nak(); err != nil {
			t.logger.Error("Failed to nak", err, nil)
		}
	case <-ctx.Done():
		return false
	}
	return true
}

func toWatermill(natsMsg *nats.Msg) *message.Message {
	id := natsMsg.Header.Get(HeaderUUID)
	if id == "" {
		id = watermill.NewUUID()
	}

	wmMsg := message.NewMessage(id, natsMsg.Data)
	for k, v := range natsMsg.Header {
		if k == HeaderUUID || len(v) == 0 {
			continue
		}
		wmMsg.Metadata.Set(k, v[0])
	}
	return wmMsg
}

// Close unsubscribes every consumer and closes the connection.
func (t *Transport) Close() error {
	t.closedMu.Lock()
	if t.closed {
		t.closedMu.Unlock()
		return nil
	}
	t.closed = true
	close(t.closedChan)
	t.closedMu.Unlock()

	t.subMu.Lock()
	for _, sub := range t.subscriptions {
		_ = sub.Unsubscribe()
	}
	t.subscriptions = make(map[string]*nats.Subscription)
	t.subMu.Unlock()

	t.nc.Close()
	return nil
}

// Capabilities returns the JetStream transport capabilities.
func (t *Transport) Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}
