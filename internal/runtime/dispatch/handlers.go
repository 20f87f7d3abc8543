package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
)

// HandlerFunc processes one message on the dispatch goroutine.
type HandlerFunc func(ctx context.Context, msg contracts.Message) error

// HandlerRegistration declares a message handler. An empty MessageType
// registers a generic handler receiving every message. LocalOnly handlers
// only see injected messages and never cause a channel to be joined.
type HandlerRegistration struct {
	Name        string
	MessageType string
	LocalOnly   bool
	Handle      HandlerFunc
}

// HandlerTable is the explicit handler registry consumed by the
// configuration pass and the dispatcher.
type HandlerTable struct {
	byType  map[string][]HandlerRegistration
	generic []HandlerRegistration
	names   map[string]struct{}
}

// NewHandlerTable returns an empty HandlerTable.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{
		byType: map[string][]HandlerRegistration{},
		names:  map[string]struct{}{},
	}
}

// Add registers h. Names must be unique.
func (t *HandlerTable) Add(h HandlerRegistration) error {
	if h.Handle == nil {
		return errspkg.ErrHandlerRequired
	}
	if h.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if _, dup := t.names[h.Name]; dup {
		return fmt.Errorf("%w: %s", errspkg.ErrDuplicateHandler, h.Name)
	}
	t.names[h.Name] = struct{}{}
	if h.MessageType == "" {
		t.generic = append(t.generic, h)
		return nil
	}
	t.byType[h.MessageType] = append(t.byType[h.MessageType], h)
	return nil
}

// HandlesRemotely reports whether a non-local handler is registered for
// messageType.
func (t *HandlerTable) HandlesRemotely(messageType string) bool {
	for _, h := range t.byType[messageType] {
		if !h.LocalOnly {
			return true
		}
	}
	return false
}

// HasGenericHandler reports whether a non-local generic handler exists.
func (t *HandlerTable) HasGenericHandler() bool {
	for _, h := range t.generic {
		if !h.LocalOnly {
			return true
		}
	}
	return false
}

// For returns the handlers of messageType followed by the generic ones.
// Local-only handlers are skipped unless includeLocal is set.
func (t *HandlerTable) For(messageType string, includeLocal bool) []HandlerRegistration {
	var out []HandlerRegistration
	for _, group := range [][]HandlerRegistration{t.byType[messageType], t.generic} {
		for _, h := range group {
			if h.LocalOnly && !includeLocal {
				continue
			}
			out = append(out, h)
		}
	}
	return out
}

// Len is the number of registered handlers.
func (t *HandlerTable) Len() int { return len(t.names) }

// CheckAbstract rejects handlers declared against abstract schema types and
// lists every offender.
func (t *HandlerTable) CheckAbstract(services []*servicedef.Service) error {
	abstract := map[string]bool{}
	for _, svc := range services {
		for _, m := range svc.Models {
			for _, typ := range m.Types {
				if typ.Abstract {
					abstract[typ.FullName()] = true
				}
			}
		}
	}

	var offenders []string
	for messageType, handlers := range t.byType {
		if !abstract[messageType] {
			continue
		}
		for _, h := range handlers {
			offenders = append(offenders, h.Name+"("+messageType+")")
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	sort.Strings(offenders)
	return &errspkg.InterfaceHandlerUnsupportedError{Handlers: offenders}
}
