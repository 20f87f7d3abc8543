package servicedef

import (
	"strings"

	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/schema"
)

// splitMessageName separates "com.acme.orders.OrderCreated" into its
// namespace and simple name.
func splitMessageName(name string) (namespace, simple string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// ResolveMessage finds the message type a role entry refers to.
//
// messageName may be qualified with the namespace of its model. modelHint,
// when set, names the model either by qualified name or by simple name.
// Matching is case-sensitive and models are searched in qualified-name order.
// A qualified messageName picks the model of that namespace; an unqualified
// name defined by more than one candidate model is ambiguous.
func (s *Service) ResolveMessage(messageName, modelHint string) (*schema.Type, error) {
	namespace, simple := splitMessageName(messageName)
	if simple == "" {
		return nil, &errspkg.MessageNotFoundError{Message: messageName, Model: modelHint}
	}

	if modelHint != "" {
		if m, ok := s.Models[modelHint]; ok {
			t, found := m.Message(simple)
			if !found || (namespace != "" && m.Namespace != namespace) {
				return nil, &errspkg.MessageNotFoundError{Message: messageName, Model: modelHint}
			}
			return t, nil
		}
	}

	var (
		match      *schema.Type
		candidates []string
	)
	for _, m := range s.SortedModels() {
		if modelHint != "" && m.Name != modelHint {
			continue
		}
		t, ok := m.Message(simple)
		if !ok {
			continue
		}
		if namespace != "" {
			if m.Namespace == namespace {
				return t, nil
			}
			continue
		}
		if match == nil {
			match = t
		}
		candidates = append(candidates, m.QualifiedName())
	}

	switch {
	case len(candidates) > 1:
		return nil, &errspkg.AmbiguousMessageError{Message: messageName, Models: candidates}
	case match == nil:
		return nil, &errspkg.MessageNotFoundError{Message: messageName, Model: modelHint}
	}
	return match, nil
}

// ResolveChannel picks the target channel of msg: the named channel when
// channelHint is set, else the channel named like the message, else the
// default channel.
func (s *Service) ResolveChannel(msg *schema.Type, channelHint string) (*Channel, error) {
	if channelHint != "" {
		if ch, ok := s.Channels[channelHint]; ok {
			return ch, nil
		}
		return nil, &errspkg.ChannelNotFoundError{Service: s.FullName(), Message: msg.FullName(), Channel: channelHint}
	}
	if ch, ok := s.Channels[msg.Name]; ok {
		return ch, nil
	}
	if s.DefaultChannel != nil {
		return s.DefaultChannel, nil
	}
	return nil, &errspkg.ChannelNotFoundError{
		Service: s.FullName(),
		Message: msg.FullName(),
		Reason:  "no channel specified, no default, no name match",
	}
}
