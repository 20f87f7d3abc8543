package policy

import (
	"fmt"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

// Handlers is the view of the handler table the join decision needs.
type Handlers interface {
	// HandlesRemotely reports whether a handler that is not local-only is
	// registered for messageType.
	HandlesRemotely(messageType string) bool
	// HasGenericHandler reports whether a non-local handler accepts every
	// message type.
	HasGenericHandler() bool
}

type named[P any] struct {
	name string
	p    P
}

// Aggregator merges provider verdicts for every channel of every service.
// Providers are consulted in registration order.
type Aggregator struct {
	logger          logging.ServiceLogger
	genericJoinsAll bool

	qos     []named[QosProvider]
	filters []named[FilterProvider]
	krts    []named[InitialKRTProvider]
	joins   []named[JoinProvider]
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithGenericHandlerJoinsAll makes a non-local generic handler join every
// channel whose providers have no verdict.
func WithGenericHandlerJoinsAll(enabled bool) AggregatorOption {
	return func(a *Aggregator) { a.genericJoinsAll = enabled }
}

// NewAggregator returns an Aggregator with no providers registered.
func NewAggregator(logger logging.ServiceLogger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds p under every provider interface it implements. The
// provider is named by its Name method, or its Go type.
func (a *Aggregator) Register(p any) error {
	return a.RegisterNamed(topic.ProviderName(p), p)
}

// RegisterNamed is Register with an explicit provider name.
func (a *Aggregator) RegisterNamed(name string, p any) error {
	if p == nil {
		return fmt.Errorf("policy provider %s is nil", name)
	}
	matched := false
	if q, ok := p.(QosProvider); ok {
		a.qos = append(a.qos, named[QosProvider]{name, q})
		matched = true
	}
	if f, ok := p.(FilterProvider); ok {
		a.filters = append(a.filters, named[FilterProvider]{name, f})
		matched = true
	}
	if k, ok := p.(InitialKRTProvider); ok {
		a.krts = append(a.krts, named[InitialKRTProvider]{name, k})
		matched = true
	}
	if j, ok := p.(JoinProvider); ok {
		a.joins = append(a.joins, named[JoinProvider]{name, j})
		matched = true
	}
	if !matched {
		return fmt.Errorf("policy provider %s implements no provider interface", name)
	}
	return nil
}

// Resolve merges the verdicts for every channel and writes the results back
// onto the channels. It stops at the first conflict.
func (a *Aggregator) Resolve(services []*servicedef.Service, handlers Handlers) (*Resolution, error) {
	res := &Resolution{
		services: append([]*servicedef.Service(nil), services...),
		joins:    map[*servicedef.Channel]bool{},
	}
	for _, svc := range res.services {
		for _, ch := range svc.SortedChannels() {
			if err := a.resolveChannel(svc, ch, handlers, res); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (a *Aggregator) resolveChannel(svc *servicedef.Service, ch *servicedef.Channel, handlers Handlers, res *Resolution) error {
	a.mergeQos(svc, ch)
	if err := a.mergeFilter(svc, ch); err != nil {
		return err
	}
	if err := a.mergeKRT(svc, ch); err != nil {
		return err
	}
	join, err := a.decideJoin(svc, ch, handlers)
	if err != nil {
		return err
	}
	res.joins[ch] = join

	a.logger.Debug("Channel policy resolved", logging.LogFields{
		"service": svc.FullName(),
		"channel": ch.QualifiedName(),
		"qos":     ch.Qos.String(),
		"filter":  ch.Filter,
		"key":     ch.InitialKey,
		"join":    join,
	})
	return nil
}

// mergeQos starts from the declared value, or Guaranteed. The first
// contributing provider replaces it; later providers may only upgrade
// BestEffort to Guaranteed.
func (a *Aggregator) mergeQos(svc *servicedef.Service, ch *servicedef.Channel) {
	value := ch.Qos
	if value == contracts.QosUnset {
		value = Guaranteed
	}
	contributed := false
	for _, p := range a.qos {
		q, ok := p.p.ChannelQos(svc, ch)
		if !ok || q == contracts.QosUnset {
			continue
		}
		if !contributed {
			value, contributed = q, true
			continue
		}
		if value == BestEffort && q == Guaranteed {
			value = Guaranteed
		}
	}
	ch.Qos = value
}

func (a *Aggregator) mergeFilter(svc *servicedef.Service, ch *servicedef.Channel) error {
	var (
		running string
		from    string
		have    bool
	)
	for _, p := range a.filters {
		f, ok := p.p.ChannelFilter(svc, ch)
		if !ok {
			continue
		}
		if !have {
			running, from, have = f, p.name, true
			continue
		}
		if f != running {
			return &errspkg.ConflictingPolicyError{
				Kind:           "filters",
				Service:        svc.FullName(),
				Channel:        ch.Name,
				FirstProvider:  from,
				FirstValue:     running,
				SecondProvider: p.name,
				SecondValue:    f,
			}
		}
	}
	if have {
		ch.Filter, ch.HasFilter = running, true
	}
	return nil
}

// mergeKRT rejects any second table, even an equal one.
func (a *Aggregator) mergeKRT(svc *servicedef.Service, ch *servicedef.Channel) error {
	var (
		table map[string]string
		from  string
	)
	for _, p := range a.krts {
		krt := p.p.InitialKRT(svc, ch)
		if krt == nil {
			continue
		}
		if table != nil {
			return &errspkg.ConflictingPolicyError{
				Kind:           "initial KRT",
				Service:        svc.FullName(),
				Channel:        ch.Name,
				FirstProvider:  from,
				FirstValue:     table,
				SecondProvider: p.name,
				SecondValue:    krt,
			}
		}
		table, from = krt, p.name
	}

	ch.InitialKRT = table
	ch.InitialKey = ch.Key
	if table != nil && ch.Key != "" {
		tmpl, err := topic.ParseTemplate(ch.Key)
		if err != nil {
			return &errspkg.ModelParseError{Source: svc.Source, Cause: fmt.Errorf("channel %s: %w", ch.Name, err)}
		}
		ch.InitialKey = tmpl.Substitute(table)
	}
	return nil
}

func (a *Aggregator) decideJoin(svc *servicedef.Service, ch *servicedef.Channel, handlers Handlers) (bool, error) {
	verdict, from := JoinDefault, ""
	for _, p := range a.joins {
		j := p.p.ChannelJoin(svc, ch)
		if j == JoinDefault {
			continue
		}
		if verdict == JoinDefault {
			verdict, from = j, p.name
			continue
		}
		if j != verdict {
			return false, &errspkg.ConflictingPolicyError{
				Kind:           "join",
				Service:        svc.FullName(),
				Channel:        ch.Name,
				FirstProvider:  from,
				FirstValue:     verdict,
				SecondProvider: p.name,
				SecondValue:    j,
			}
		}
	}

	switch verdict {
	case JoinAlways:
		return true, nil
	case JoinNever:
		return false, nil
	}
	if handlers == nil {
		return false, nil
	}
	if a.genericJoinsAll && handlers.HasGenericHandler() {
		return true, nil
	}
	for _, b := range svc.BindingsOn(ch) {
		if handlers.HandlesRemotely(b.MessageType) {
			return true, nil
		}
	}
	return false, nil
}

// Resolution is the outcome of Aggregator.Resolve.
type Resolution struct {
	services []*servicedef.Service
	joins    map[*servicedef.Channel]bool
}

// Services returns the services the resolution was computed for.
func (r *Resolution) Services() []*servicedef.Service {
	return append([]*servicedef.Service(nil), r.services...)
}

// Joined reports whether ch must be joined.
func (r *Resolution) Joined(ch *servicedef.Channel) bool { return r.joins[ch] }

// JoinSet returns the channels of svc to join, ordered by name.
func (r *Resolution) JoinSet(svc *servicedef.Service) []*servicedef.Channel {
	var out []*servicedef.Channel
	for _, ch := range svc.SortedChannels() {
		if r.joins[ch] {
			out = append(out, ch)
		}
	}
	return out
}
