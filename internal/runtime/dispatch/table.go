// Package dispatch holds the runtime dispatch table: for every routed
// message type, the bus and channel it is sent on, the resolver computing its
// topic and the handle of the channel once the bus reports it up.
package dispatch

import (
	"sort"
	"sync/atomic"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

// ChannelHandle identifies an open channel. Ref carries whatever the engine
// needs to publish on it.
type ChannelHandle struct {
	Bus     string
	Channel string
	Ref     any
}

// ChannelListener receives channel lifecycle events from the engine.
type ChannelListener interface {
	OnChannelUp(handle *ChannelHandle)
	OnChannelDown(bus, channel string)
}

// SendContext is the dispatch table entry of one message type.
type SendContext struct {
	ID          contracts.MessageID
	MessageType string
	Service     string
	Bus         string
	// Channel is the qualified channel name.
	Channel  string
	Target   *servicedef.Channel
	Resolver topic.Resolver
	Qos      contracts.Qos

	handle atomic.Pointer[ChannelHandle]

	// Owned by the sending goroutine.
	topicBuf  []byte
	lastTopic string
}

// Handle returns the channel handle, or nil while the channel is not up.
func (sc *SendContext) Handle() *ChannelHandle { return sc.handle.Load() }

// Ready reports whether the channel handle is set.
func (sc *SendContext) Ready() bool { return sc.handle.Load() != nil }

// ChannelSpec describes a channel the engine has to open.
type ChannelSpec struct {
	Bus       string
	Name      string
	Qos       contracts.Qos
	Filter    string
	HasFilter bool
	Join      bool
}

type channelKey struct {
	bus     string
	channel string
}

// Table maps message identities to send contexts.
//
// Lookups and handle loads may run concurrently with channel events. The
// maps themselves are never written after Build.
type Table struct {
	logger    logging.ServiceLogger
	contexts  map[contracts.MessageID]*SendContext
	byChannel map[channelKey][]*SendContext
	joins     map[string][]*servicedef.Channel
	specs     []ChannelSpec
	up        atomic.Int64
}

var _ ChannelListener = (*Table)(nil)

func newTable(logger logging.ServiceLogger) *Table {
	return &Table{
		logger:    logger,
		contexts:  map[contracts.MessageID]*SendContext{},
		byChannel: map[channelKey][]*SendContext{},
		joins:     map[string][]*servicedef.Channel{},
	}
}

// Lookup returns the send context of id.
func (t *Table) Lookup(id contracts.MessageID) (*SendContext, bool) {
	sc, ok := t.contexts[id]
	return sc, ok
}

// Len is the number of routed message types.
func (t *Table) Len() int { return len(t.contexts) }

// Contexts returns the entries ordered by message id.
func (t *Table) Contexts() []*SendContext {
	out := make([]*SendContext, 0, len(t.contexts))
	for _, sc := range t.contexts {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// JoinSet returns the channels service must join.
func (t *Table) JoinSet(service string) []*servicedef.Channel {
	return append([]*servicedef.Channel(nil), t.joins[service]...)
}

// JoinServices lists the services with a join set, sorted.
func (t *Table) JoinServices() []string {
	out := make([]string, 0, len(t.joins))
	for svc := range t.joins {
		out = append(out, svc)
	}
	sort.Strings(out)
	return out
}

// ChannelSpecs returns every channel to open, ordered by bus and name.
func (t *Table) ChannelSpecs() []ChannelSpec {
	return append([]ChannelSpec(nil), t.specs...)
}

// ChannelsUp counts channel-up events that populated at least one entry.
func (t *Table) ChannelsUp() int64 { return t.up.Load() }

// OnChannelUp stores handle on every entry sent on its channel. Channels
// without entries are ignored.
func (t *Table) OnChannelUp(handle *ChannelHandle) {
	if handle == nil {
		return
	}
	entries := t.byChannel[channelKey{bus: handle.Bus, channel: handle.Channel}]
	if len(entries) == 0 {
		t.logger.Debug("Channel up without routed messages", logging.LogFields{
			"bus":     handle.Bus,
			"channel": handle.Channel,
		})
		return
	}
	populated := 0
	for _, sc := range entries {
		if sc.handle.CompareAndSwap(nil, handle) {
			populated++
		}
	}
	if populated > 0 {
		t.up.Add(1)
	}
	t.logger.Info("Channel up", logging.LogFields{
		"bus":      handle.Bus,
		"channel":  handle.Channel,
		"messages": populated,
	})
}

// OnChannelDown only logs. Handles stay set, so sends after a channel went
// down reach the engine, which rejects them.
func (t *Table) OnChannelDown(bus, channel string) {
	t.logger.Warn("Channel down", logging.LogFields{
		"bus":      bus,
		"channel":  channel,
		"messages": len(t.byChannel[channelKey{bus: bus, channel: channel}]),
	})
}
