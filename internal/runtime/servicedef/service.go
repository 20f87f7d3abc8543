// Package servicedef loads service definitions: the schema models a service
// imports, the channels it declares and the roles binding its messages to
// those channels.
package servicedef

import (
	"sort"
	"strings"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/schema"
)

// DefaultBus is the bus of channels that do not name one.
const DefaultBus = "default"

// Service is one loaded service definition. It is immutable once loading has
// finished, apart from the policy fields of its channels which the policy
// aggregator fills in once.
type Service struct {
	Namespace          string
	Name               string
	PrefixChannelNames bool
	Source             string

	// Models is keyed by qualified model name.
	Models map[string]*schema.Model
	// Channels is keyed by simple channel name.
	Channels       map[string]*Channel
	Roles          map[string]*Role
	DefaultChannel *Channel
}

func newService(namespace, name string, prefix bool) *Service {
	return &Service{
		Namespace:          namespace,
		Name:               name,
		PrefixChannelNames: prefix,
		Models:             map[string]*schema.Model{},
		Channels:           map[string]*Channel{},
		Roles:              map[string]*Role{},
	}
}

// FullName is namespace + "." + name.
func (s *Service) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// SortedChannels returns the channels ordered by simple name.
func (s *Service) SortedChannels() []*Channel {
	out := make([]*Channel, 0, len(s.Channels))
	for _, ch := range s.Channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortedModels returns the imported models ordered by qualified name.
func (s *Service) SortedModels() []*schema.Model {
	out := make([]*schema.Model, 0, len(s.Models))
	for _, m := range s.Models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName() < out[j].QualifiedName() })
	return out
}

// Bindings returns every role binding ordered by role and message name.
func (s *Service) Bindings() []*Binding {
	roles := make([]string, 0, len(s.Roles))
	for name := range s.Roles {
		roles = append(roles, name)
	}
	sort.Strings(roles)

	var out []*Binding
	for _, name := range roles {
		out = append(out, s.Roles[name].SortedBindings()...)
	}
	return out
}

// BindingsOn returns the bindings targeting ch.
func (s *Service) BindingsOn(ch *Channel) []*Binding {
	var out []*Binding
	for _, b := range s.Bindings() {
		if b.Channel == ch {
			out = append(out, b)
		}
	}
	return out
}

// Channel is a named routing destination of a service.
type Channel struct {
	Service *Service
	Name    string
	Bus     string
	// Key is the declared key template, for example "ORDERS/${Region}".
	Key     string
	Default bool

	// Qos, Filter and HasFilter hold the declared values after loading and
	// the merged values after policy aggregation.
	Qos       contracts.Qos
	Filter    string
	HasFilter bool

	// InitialKRT and InitialKey are set once by policy aggregation.
	// InitialKey is Key with InitialKRT substituted.
	InitialKRT map[string]string
	InitialKey string
}

// QualifiedName is the name the channel has on its bus. With prefixing it is
// the lower-cased service name, a dash and the channel name.
func (c *Channel) QualifiedName() string {
	if c.Service != nil && c.Service.PrefixChannelNames {
		return strings.ToLower(c.Service.Name) + "-" + c.Name
	}
	return c.Name
}

// ResolvedKey is the key used at send time: InitialKey once aggregation ran,
// the declared template before.
func (c *Channel) ResolvedKey() string {
	if c.InitialKey != "" {
		return c.InitialKey
	}
	return c.Key
}

// Role groups message bindings of a service.
type Role struct {
	Name string
	// Bindings is keyed by message full name.
	Bindings map[string]*Binding
}

// SortedBindings returns the bindings ordered by message full name.
func (r *Role) SortedBindings() []*Binding {
	out := make([]*Binding, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageType < out[j].MessageType })
	return out
}

// Binding ties one message type to its target channel.
type Binding struct {
	Role    *Role
	Message *schema.Type
	Channel *Channel
	// MessageType is the full name of the message.
	MessageType string
}

// MessageID is the dispatch identity of the bound message.
func (b *Binding) MessageID() contracts.MessageID { return b.Message.MessageID() }
