package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
	newtransport "github.com/drblury/topicflow/transport"
)

// Channel is an open channel. It is the Ref of the dispatch.ChannelHandle
// handed to the dispatch table.
type Channel struct {
	bus    *Bus
	spec   dispatch.ChannelSpec
	handle *dispatch.ChannelHandle
}

// Spec returns the merged channel policy the channel was opened with.
func (c *Channel) Spec() dispatch.ChannelSpec { return c.spec }

// Bus returns the bus the channel was opened on.
func (c *Channel) Bus() *Bus { return c.bus }

// Bus is one named message bus backed by a watermill transport.
type Bus struct {
	name     string
	tr       newtransport.Transport
	caps     newtransport.Capabilities
	logger   logging.ServiceLogger
	listener dispatch.ChannelListener

	mu       sync.Mutex
	channels map[string]*Channel
	closed   bool
}

// NewBus wraps tr. Channel events are reported to listener.
func NewBus(name string, tr newtransport.Transport, caps newtransport.Capabilities, listener dispatch.ChannelListener, logger logging.ServiceLogger) *Bus {
	return &Bus{
		name:     name,
		tr:       tr,
		caps:     caps,
		logger:   logging.OrNop(logger).With(logging.LogFields{"bus": name, "transport": caps.Name}),
		listener: listener,
		channels: map[string]*Channel{},
	}
}

func (b *Bus) Name() string { return b.name }

func (b *Bus) Capabilities() newtransport.Capabilities { return b.caps }

// Open opens a channel and reports it up. Opening an open channel returns
// its existing handle.
func (b *Bus) Open(spec dispatch.ChannelSpec) (*dispatch.ChannelHandle, error) {
	if spec.Bus != b.name {
		return nil, fmt.Errorf("channel %s belongs to bus %q, not %q", spec.Name, spec.Bus, b.name)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus %q is closed", b.name)
	}
	if ch, ok := b.channels[spec.Name]; ok {
		b.mu.Unlock()
		return ch.handle, nil
	}
	ch := &Channel{bus: b, spec: spec}
	ch.handle = &dispatch.ChannelHandle{Bus: b.name, Channel: spec.Name, Ref: ch}
	b.channels[spec.Name] = ch
	b.mu.Unlock()

	if spec.Qos == contracts.QosGuaranteed && !b.caps.SupportsGuaranteed() {
		b.logger.Warn("Transport cannot guarantee delivery on channel", logging.LogFields{"channel": spec.Name})
	}
	b.logger.Debug("Channel up", logging.LogFields{
		"channel": spec.Name,
		"qos":     spec.Qos.String(),
		"join":    spec.Join,
	})
	if b.listener != nil {
		b.listener.OnChannelUp(ch.handle)
	}
	return ch.handle, nil
}

// Subscriber returns the subscriber to consume channel with. When the
// channel carries a filter and the transport applies filters, the returned
// subscriber joins with it; otherwise the filter is logged and dropped.
func (b *Bus) Subscriber(channel string) (message.Subscriber, error) {
	b.mu.Lock()
	ch, ok := b.channels[channel]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("channel %s is not open on bus %q", channel, b.name)
	}
	if !ch.spec.HasFilter || ch.spec.Filter == "" {
		return b.tr.Subscriber, nil
	}
	if fs, ok := b.tr.Subscriber.(newtransport.FilteredSubscriber); ok {
		return filteredSubscriber{Subscriber: b.tr.Subscriber, filtered: fs, filter: ch.spec.Filter}, nil
	}
	b.logger.Warn("Transport does not apply channel filters, joining unfiltered", logging.LogFields{
		"channel": channel,
		"filter":  ch.spec.Filter,
	})
	return b.tr.Subscriber, nil
}

type filteredSubscriber struct {
	message.Subscriber
	filtered newtransport.FilteredSubscriber
	filter   string
}

func (f filteredSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return f.filtered.SubscribeFiltered(ctx, topic, f.filter)
}

// Publish emits msg on the channel behind handle. Failures on best-effort
// channels are logged and dropped; guaranteed channels return them. Every
// publish on a closed bus fails with a ChannelNotReadyError.
func (b *Bus) Publish(handle *dispatch.ChannelHandle, msg *message.Message) error {
	ch, ok := handle.Ref.(*Channel)
	if !ok || ch.bus != b {
		return fmt.Errorf("handle of %s/%s does not belong to bus %q", handle.Bus, handle.Channel, b.name)
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return &errspkg.ChannelNotReadyError{Bus: b.name, Channel: ch.spec.Name, Message: msg.Metadata.Get(newtransport.MetadataMessageType)}
	}

	err := b.tr.Publisher.Publish(ch.spec.Name, msg)
	if err == nil {
		return nil
	}
	if ch.spec.Qos == contracts.QosGuaranteed {
		return fmt.Errorf("publish on %s: %w", ch.spec.Name, err)
	}
	b.logger.Error("Best-effort publish failed", err, logging.LogFields{
		"channel":      ch.spec.Name,
		"message_uuid": msg.UUID,
	})
	return nil
}

// Channels returns the open channels sorted by name.
func (b *Bus) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].spec.Name < out[j].spec.Name })
	return out
}

// Close reports every channel down and closes the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	for _, ch := range b.Channels() {
		if b.listener != nil {
			b.listener.OnChannelDown(b.name, ch.spec.Name)
		}
	}
	return b.tr.Close()
}
