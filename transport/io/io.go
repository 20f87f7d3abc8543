// Package io provides a file-backed transport. Every bus appends its
// messages as JSON lines to one journal file and subscribers tail it, which
// makes the journal a readable record of what was routed where.
package io

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/topicflow/internal/runtime/jsoncodec"
	"github.com/drblury/topicflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is the journal used when none is configured.
const DefaultFilePath = "topicflow.journal"

// PollInterval is how often a subscriber at the end of the journal checks
// for new records.
var PollInterval = 50 * time.Millisecond

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return &Publisher{filePath: filePath, logger: logger}, nil
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return &Subscriber{filePath: filePath, logger: logger}, nil
}

func init() {
	Register()
}

// Register registers the I/O transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build creates a new I/O transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	filePath := cfg.GetIOFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pub, err := PublisherFactory(filePath, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	sub, err := SubscriberFactory(filePath, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// Record is one journal line.
type Record struct {
	UUID     string            `json:"uuid"`
	Topic    string            `json:"topic"`
	Key      string            `json:"key,omitempty"`
	Metadata map[string]string `json:"metadata"`
	Payload  []byte            `json:"payload"`
}

// Publisher appends messages to the journal.
type Publisher struct {
	filePath string
	logger   watermill.LoggerAdapter
	mu       sync.Mutex
}

// Publish appends one record per message.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, msg := range messages {
		line, err := jsoncodec.Marshal(Record{
			UUID:     msg.UUID,
			Topic:    topic,
			Key:      msg.Metadata.Get(transport.MetadataKey),
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
		})
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// Subscriber tails the journal.
type Subscriber struct {
	filePath string
	logger   watermill.LoggerAdapter
}

// Subscribe delivers every record of topic, starting at the beginning of the
// journal.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.SubscribeFiltered(ctx, topic, "")
}

// SubscribeFiltered delivers the records of topic whose key matches the glob
// pattern filter (see path.Match). An empty filter matches every key.
func (s *Subscriber) SubscribeFiltered(ctx context.Context, topic, filter string) (<-chan *message.Message, error) {
	if filter != "" {
		if _, err := path.Match(filter, ""); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	out := make(chan *message.Message)
	go func() {
		defer close(out)
		defer f.Close()
		s.tail(ctx, bufio.NewReader(f), out, topic, filter)
	}()
	return out, nil
}

func (s *Subscriber) tail(ctx context.Context, reader *bufio.Reader, out chan<- *message.Message, topic, filter string) {
	var partial []byte
	for {
		line, err := reader.ReadBytes('\n')
		partial = append(partial, line...)
		if errors.Is(err, io.EOF) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(PollInterval):
			}
			continue
		}
		if err != nil {
			s.logger.Error("Failed to read journal", err, watermill.LogFields{"file": s.filePath})
			return
		}

		record := partial
		partial = nil
		if !s.deliver(ctx, out, record, topic, filter) {
			return
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, out chan<- *message.Message, line []byte, topic, filter string) bool {
	var rec Record
	if err := jsoncodec.Unmarshal(line, &rec); err != nil {
		s.logger.Error("Failed to decode journal record", err, nil)
		return true
	}
	if rec.Topic != topic {
		return true
	}
	if filter != "" {
		if ok, _ := path.Match(filter, rec.Key); !ok {
			return true
		}
	}

	msg := message.NewMessage(rec.UUID, rec.Payload)
	msg.Metadata = rec.Metadata
	if msg.Metadata == nil {
		msg.Metadata = message.Metadata{}
	}
	msg.SetContext(ctx)

	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	}
	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		s.logger.Debug("Journal record nacked", watermill.LogFields{"uuid": msg.UUID})
	case <-ctx.Done():
		return false
	}
	return true
}

func (s *Subscriber) Close() error {
	return nil
}
