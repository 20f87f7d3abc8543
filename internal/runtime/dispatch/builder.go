package dispatch

import (
	"sort"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/policy"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

// Builder turns resolved services into a dispatch Table.
type Builder struct {
	logger    logging.ServiceLogger
	resolvers *topic.Registry
	factories *FactoryRegistry
}

// NewBuilder returns a Builder. A nil registry gets one with the default
// template resolution; a nil factory registry gets an empty one.
func NewBuilder(logger logging.ServiceLogger, resolvers *topic.Registry, factories *FactoryRegistry) *Builder {
	logger = logging.OrNop(logger)
	if resolvers == nil {
		resolvers = topic.NewRegistry(logger)
	}
	if factories == nil {
		factories = NewFactoryRegistry()
	}
	return &Builder{logger: logger, resolvers: resolvers, factories: factories}
}

// Factories returns the factory registry the builder declares message
// identities in.
func (b *Builder) Factories() *FactoryRegistry { return b.factories }

// Build creates one send context per bound message type across all services
// of res. A message bound in several roles or services keeps its first
// binding; two different types sharing one identity fail the build.
func (b *Builder) Build(res *policy.Resolution) (*Table, error) {
	table := newTable(b.logger)
	specs := map[channelKey]*ChannelSpec{}

	for _, svc := range res.Services() {
		for _, binding := range svc.Bindings() {
			if err := b.addBinding(table, svc, binding); err != nil {
				return nil, err
			}
		}
		for _, ch := range svc.SortedChannels() {
			mergeSpec(specs, ch, res.Joined(ch))
		}
		if joins := res.JoinSet(svc); len(joins) > 0 {
			table.joins[svc.FullName()] = joins
		}
	}

	table.specs = make([]ChannelSpec, 0, len(specs))
	for _, spec := range specs {
		table.specs = append(table.specs, *spec)
	}
	sort.Slice(table.specs, func(i, j int) bool {
		if table.specs[i].Bus != table.specs[j].Bus {
			return table.specs[i].Bus < table.specs[j].Bus
		}
		return table.specs[i].Name < table.specs[j].Name
	})

	b.logger.Info("Dispatch table built", logging.LogFields{
		"messages": table.Len(),
		"channels": len(table.specs),
	})
	return table, nil
}

func (b *Builder) addBinding(table *Table, svc *servicedef.Service, binding *servicedef.Binding) error {
	id := binding.MessageID()
	if existing, ok := table.contexts[id]; ok {
		if existing.MessageType != binding.MessageType {
			return &errspkg.FactoryIDCollisionError{ID: uint64(id), Existing: existing.MessageType, Incoming: binding.MessageType}
		}
		if existing.Target != binding.Channel {
			b.logger.Warn("Message bound to several channels, keeping first binding", logging.LogFields{
				"message": binding.MessageType,
				"kept":    existing.Channel,
				"ignored": binding.Channel.QualifiedName(),
				"service": svc.FullName(),
			})
		}
		return nil
	}
	if err := b.factories.Declare(id, binding.MessageType); err != nil {
		return err
	}

	ch := binding.Channel
	info := topic.ChannelInfo{
		Service:       svc.FullName(),
		Name:          ch.Name,
		QualifiedName: ch.QualifiedName(),
		Bus:           ch.Bus,
		Key:           ch.ResolvedKey(),
	}
	resolver, err := b.resolvers.TopicResolver(svc.FullName(), info, binding.MessageType)
	if err != nil {
		return err
	}

	sc := &SendContext{
		ID:          id,
		MessageType: binding.MessageType,
		Service:     svc.FullName(),
		Bus:         ch.Bus,
		Channel:     info.QualifiedName,
		Target:      ch,
		Resolver:    resolver,
		Qos:         ch.Qos,
	}
	table.contexts[id] = sc
	key := channelKey{bus: sc.Bus, channel: sc.Channel}
	table.byChannel[key] = append(table.byChannel[key], sc)
	return nil
}

// mergeSpec folds a channel into the spec of its (bus, qualified name).
// Services sharing a physical channel join it if any of them does and get
// the strongest QoS.
func mergeSpec(specs map[channelKey]*ChannelSpec, ch *servicedef.Channel, join bool) {
	key := channelKey{bus: ch.Bus, channel: ch.QualifiedName()}
	spec, ok := specs[key]
	if !ok {
		specs[key] = &ChannelSpec{
			Bus:       ch.Bus,
			Name:      key.channel,
			Qos:       ch.Qos,
			Filter:    ch.Filter,
			HasFilter: ch.HasFilter,
			Join:      join,
		}
		return
	}
	spec.Join = spec.Join || join
	if ch.Qos == contracts.QosGuaranteed {
		spec.Qos = contracts.QosGuaranteed
	}
	if !spec.HasFilter && ch.HasFilter {
		spec.Filter, spec.HasFilter = ch.Filter, true
	}
}
