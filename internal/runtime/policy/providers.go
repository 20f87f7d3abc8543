// Package policy merges the routing policies that providers contribute for
// each channel: quality of service, content filter, initial key-resolution
// table and the join decision.
package policy

import (
	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
)

// Qos aliases the channel delivery guarantee.
type Qos = contracts.Qos

const (
	BestEffort = contracts.QosBestEffort
	Guaranteed = contracts.QosGuaranteed
)

// Join is a provider verdict on joining a channel.
type Join int

const (
	// JoinDefault defers to handler presence.
	JoinDefault Join = iota
	JoinAlways
	JoinNever
)

func (j Join) String() string {
	switch j {
	case JoinAlways:
		return "join"
	case JoinNever:
		return "no-join"
	default:
		return "default"
	}
}

// QosProvider contributes a QoS for a channel. ok=false abstains.
type QosProvider interface {
	ChannelQos(svc *servicedef.Service, ch *servicedef.Channel) (qos Qos, ok bool)
}

// FilterProvider contributes a content filter. Filters are opaque to
// topicflow and handed to the bus on join.
type FilterProvider interface {
	ChannelFilter(svc *servicedef.Service, ch *servicedef.Channel) (filter string, ok bool)
}

// InitialKRTProvider contributes the initial key-resolution table of a
// channel. A nil table abstains.
type InitialKRTProvider interface {
	InitialKRT(svc *servicedef.Service, ch *servicedef.Channel) map[string]string
}

// JoinProvider contributes a join verdict.
type JoinProvider interface {
	ChannelJoin(svc *servicedef.Service, ch *servicedef.Channel) Join
}

// QosFunc adapts a function to QosProvider.
type QosFunc func(svc *servicedef.Service, ch *servicedef.Channel) (Qos, bool)

func (f QosFunc) ChannelQos(svc *servicedef.Service, ch *servicedef.Channel) (Qos, bool) {
	return f(svc, ch)
}

// FilterFunc adapts a function to FilterProvider.
type FilterFunc func(svc *servicedef.Service, ch *servicedef.Channel) (string, bool)

func (f FilterFunc) ChannelFilter(svc *servicedef.Service, ch *servicedef.Channel) (string, bool) {
	return f(svc, ch)
}

// InitialKRTFunc adapts a function to InitialKRTProvider.
type InitialKRTFunc func(svc *servicedef.Service, ch *servicedef.Channel) map[string]string

func (f InitialKRTFunc) InitialKRT(svc *servicedef.Service, ch *servicedef.Channel) map[string]string {
	return f(svc, ch)
}

// JoinFunc adapts a function to JoinProvider.
type JoinFunc func(svc *servicedef.Service, ch *servicedef.Channel) Join

func (f JoinFunc) ChannelJoin(svc *servicedef.Service, ch *servicedef.Channel) Join {
	return f(svc, ch)
}
