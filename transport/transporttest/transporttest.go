// Package transporttest provides fixtures shared by the transport tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a field-backed transport.Config.
type Config struct {
	PubSubSystem       string
	KafkaBrokers       []string
	KafkaClientID      string
	KafkaConsumerGroup string
	RabbitMQURL        string
	NATSURL            string
	HTTPServerAddress  string
	HTTPPublisherURL   string
	IOFile             string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetPubSubSystem() string       { return c.PubSubSystem }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string      { return c.KafkaClientID }
func (c *Config) GetKafkaConsumerGroup() string { return c.KafkaConsumerGroup }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetHTTPServerAddress() string  { return c.HTTPServerAddress }
func (c *Config) GetHTTPPublisherURL() string   { return c.HTTPPublisherURL }
func (c *Config) GetIOFile() string             { return c.IOFile }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string       { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

// Published is one recorded Publish call.
type Published struct {
	Topic    string
	Messages []*message.Message
}

// Publisher records published messages.
type Publisher struct {
	mu     sync.Mutex
	calls  []Published
	Err    error
	Closed bool
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.calls = append(p.calls, Published{Topic: topic, Messages: messages})
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Calls returns a copy of the recorded calls.
func (p *Publisher) Calls() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.calls...)
}

// Subscriber hands out one channel per topic; tests feed it with Send.
type Subscriber struct {
	mu      sync.Mutex
	topics  map[string]chan *message.Message
	Filters map[string]string
	Closed  bool
}

func (s *Subscriber) channel(topic string) chan *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topics == nil {
		s.topics = map[string]chan *message.Message{}
	}
	ch, ok := s.topics[topic]
	if !ok {
		ch = make(chan *message.Message, 16)
		s.topics[topic] = ch
	}
	return ch
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.channel(topic), nil
}

// Subscribed reports whether topic was subscribed.
func (s *Subscriber) Subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.topics[topic]
	return ok
}

// Send delivers msg to the subscribers of topic.
func (s *Subscriber) Send(topic string, msg *message.Message) {
	s.channel(topic) <- msg
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// FilteredSubscriber additionally records the filters it was joined with.
type FilteredSubscriber struct {
	Subscriber
}

func (s *FilteredSubscriber) SubscribeFiltered(ctx context.Context, topic, filter string) (<-chan *message.Message, error) {
	s.mu.Lock()
	if s.Filters == nil {
		s.Filters = map[string]string{}
	}
	s.Filters[topic] = filter
	s.mu.Unlock()
	return s.Subscribe(ctx, topic)
}
