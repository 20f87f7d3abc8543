package topic

import (
	"fmt"
	"sync"

	"github.com/drblury/topicflow/internal/runtime/logging"
)

// Provider supplies resolvers for the channels of a service. Returning nil
// abstains.
type Provider interface {
	TopicResolver(service string, ch ChannelInfo, messageType string) Resolver
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(service string, ch ChannelInfo, messageType string) Resolver

func (f ProviderFunc) TopicResolver(service string, ch ChannelInfo, messageType string) Resolver {
	return f(service, ch, messageType)
}

// GeneratedFactory builds the provider emitted by code generation for one
// service.
type GeneratedFactory func() Provider

var generated = struct {
	sync.RWMutex
	factories map[string]GeneratedFactory
}{factories: map[string]GeneratedFactory{}}

// RegisterGenerated records the generated provider of a service, keyed by
// the service full name. Generated code calls it from init.
func RegisterGenerated(service string, factory GeneratedFactory) {
	if factory == nil {
		panic("topicflow: nil generated provider factory for " + service)
	}
	generated.Lock()
	defer generated.Unlock()
	generated.factories[service] = factory
}

func lookupGenerated(service string) (GeneratedFactory, bool) {
	generated.RLock()
	defer generated.RUnlock()
	f, ok := generated.factories[service]
	return f, ok
}

type namedProvider struct {
	name string
	p    Provider
}

type initKey struct {
	resolver Resolver
	channel  string
}

// Registry picks the resolver for every (service, channel, message type).
//
// Precedence: the generated provider of the service is consulted first, then
// application providers in registration order. The last non-nil resolver
// wins and every override is logged as a warning. When nobody supplies a
// resolver and the channel has a key, a TemplateResolver is used.
type Registry struct {
	logger    logging.ServiceLogger
	lookup    func(service string) (GeneratedFactory, bool)
	providers []namedProvider
	fallback  bool

	services    map[string]Provider
	initialized map[initKey]struct{}
	templates   map[string]*TemplateResolver
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithGeneratedLookup replaces the process-wide generated provider table.
func WithGeneratedLookup(lookup func(service string) (GeneratedFactory, bool)) RegistryOption {
	return func(r *Registry) { r.lookup = lookup }
}

// WithoutTemplateFallback disables the built-in TemplateResolver.
func WithoutTemplateFallback() RegistryOption {
	return func(r *Registry) { r.fallback = false }
}

// NewRegistry returns a Registry backed by the generated provider table
// with template fallback enabled.
func NewRegistry(logger logging.ServiceLogger, opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:      logger,
		lookup:      lookupGenerated,
		fallback:    true,
		services:    map[string]Provider{},
		initialized: map[initKey]struct{}{},
		templates:   map[string]*TemplateResolver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddProvider appends an application provider. Later providers override
// earlier ones.
func (r *Registry) AddProvider(p Provider) {
	if p == nil {
		return
	}
	r.providers = append(r.providers, namedProvider{name: ProviderName(p), p: p})
}

// ProviderName identifies p in logs and errors: its Name method when it has
// one, its Go type otherwise.
func ProviderName(p any) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func (r *Registry) generatedFor(service string) Provider {
	if p, ok := r.services[service]; ok {
		return p
	}
	var p Provider
	if factory, ok := r.lookup(service); ok {
		p = factory()
	}
	// misses are cached as nil
	r.services[service] = p
	return p
}

// TopicResolver returns the initialized resolver for a message type sent on
// ch, or nil when the channel has no key and no provider supplies one.
func (r *Registry) TopicResolver(service string, ch ChannelInfo, messageType string) (Resolver, error) {
	var (
		chosen     Resolver
		chosenFrom string
	)
	consider := func(name string, p Provider) {
		res := p.TopicResolver(service, ch, messageType)
		if res == nil {
			return
		}
		if chosen != nil && r.logger != nil {
			r.logger.Warn("Topic resolver overridden", logging.LogFields{
				"service":     service,
				"channel":     ch.QualifiedName,
				"messageType": messageType,
				"previous":    chosenFrom,
				"provider":    name,
			})
		}
		chosen, chosenFrom = res, name
	}

	if gen := r.generatedFor(service); gen != nil {
		consider(ProviderName(gen), gen)
	}
	for _, np := range r.providers {
		consider(np.name, np.p)
	}

	if chosen == nil {
		if !r.fallback || ch.Key == "" {
			return nil, nil
		}
		// one template resolver per channel, shared by its message types
		tr, ok := r.templates[ch.QualifiedName]
		if !ok {
			tr = NewTemplateResolver()
			r.templates[ch.QualifiedName] = tr
		}
		chosen, chosenFrom = tr, "template"
	}

	key := initKey{resolver: chosen, channel: ch.QualifiedName}
	if _, done := r.initialized[key]; !done {
		if err := chosen.Initialize(ch); err != nil {
			return nil, fmt.Errorf("initialize topic resolver %s for channel %s: %w", chosenFrom, ch.QualifiedName, err)
		}
		r.initialized[key] = struct{}{}
	}
	if r.logger != nil {
		r.logger.Debug("Topic resolver selected", logging.LogFields{
			"service":     service,
			"channel":     ch.QualifiedName,
			"messageType": messageType,
			"provider":    chosenFrom,
		})
	}
	return chosen, nil
}
