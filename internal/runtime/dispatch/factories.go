package dispatch

import (
	"sync"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

// MessageFactory builds an empty message value to decode into.
type MessageFactory func() contracts.Message

type factoryEntry struct {
	fullName string
	newFn    MessageFactory
}

// FactoryRegistry maps message identities to their full names and, where
// the application supplied one, to a constructor.
type FactoryRegistry struct {
	mu      sync.RWMutex
	entries map[contracts.MessageID]factoryEntry
}

// NewFactoryRegistry returns an empty FactoryRegistry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{entries: map[contracts.MessageID]factoryEntry{}}
}

// Register records the Go type built by newFn. Registering the same type
// again is a no-op; a different type with the same identity is a collision.
func (r *FactoryRegistry) Register(newFn MessageFactory) error {
	if newFn == nil {
		return errspkg.ErrMessageRequired
	}
	sample := newFn()
	if sample == nil {
		return errspkg.ErrMessageRequired
	}
	return r.declare(contracts.IDOf(sample), sample.MessageFullName(), newFn)
}

// Declare records the identity of a schema type that may have no Go
// constructor.
func (r *FactoryRegistry) Declare(id contracts.MessageID, fullName string) error {
	return r.declare(id, fullName, nil)
}

func (r *FactoryRegistry) declare(id contracts.MessageID, fullName string, newFn MessageFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[id]
	if ok && existing.fullName != fullName {
		return &errspkg.FactoryIDCollisionError{ID: uint64(id), Existing: existing.fullName, Incoming: fullName}
	}
	if ok && existing.newFn != nil {
		return nil
	}
	r.entries[id] = factoryEntry{fullName: fullName, newFn: newFn}
	return nil
}

// New builds an empty message for id.
func (r *FactoryRegistry) New(id contracts.MessageID) (contracts.Message, bool) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || entry.newFn == nil {
		return nil, false
	}
	return entry.newFn(), true
}

// FullName returns the full name registered for id.
func (r *FactoryRegistry) FullName(id contracts.MessageID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry.fullName, ok
}
