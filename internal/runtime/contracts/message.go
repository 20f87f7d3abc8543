// Package contracts defines what the routing layer needs to know about an
// application message: its 64-bit identity, its fully qualified type name,
// and the routing key it is sent with.
package contracts

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageID is the composite identity of a message type:
// (factoryID << 32) | typeID.
type MessageID uint64

// NewMessageID combines a factory id and a type id.
func NewMessageID(factoryID, typeID int32) MessageID {
	return MessageID(uint64(uint32(factoryID))<<32 | uint64(uint32(typeID)))
}

// FactoryID returns the upper 32 bits.
func (id MessageID) FactoryID() int32 { return int32(uint32(id >> 32)) }

// TypeID returns the lower 32 bits.
func (id MessageID) TypeID() int32 { return int32(uint32(id)) }

func (id MessageID) String() string {
	return fmt.Sprintf("%d:%d", id.FactoryID(), id.TypeID())
}

// ParseMessageID parses the factory:type form produced by String.
func ParseMessageID(s string) (MessageID, error) {
	f, t, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("message id %q: missing separator", s)
	}
	factoryID, err := strconv.ParseInt(f, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("message id %q: %w", s, err)
	}
	typeID, err := strconv.ParseInt(t, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("message id %q: %w", s, err)
	}
	return NewMessageID(int32(factoryID), int32(typeID)), nil
}

// Message is implemented by every type sent through the dispatch table.
type Message interface {
	MessageFactoryID() int32
	MessageTypeID() int32
	// MessageFullName is the namespace-qualified type name, for example
	// "com.acme.orders.OrderCreated".
	MessageFullName() string
	// MessageKey returns the routing key the message was last sent with.
	MessageKey() string
	SetMessageKey(key string)
}

// IDOf returns the dispatch identity of msg.
func IDOf(msg Message) MessageID {
	return NewMessageID(msg.MessageFactoryID(), msg.MessageTypeID())
}

// KeyFielder exposes message fields to topic resolution. Implementations
// append the textual value of field to dst and report whether the field is
// present; they must not allocate when dst has capacity.
type KeyFielder interface {
	AppendKeyField(dst []byte, field string) ([]byte, bool)
}

// Keyed is an embeddable helper carrying the routing key of a message.
type Keyed struct {
	key string
}

func (k *Keyed) MessageKey() string { return k.key }

func (k *Keyed) SetMessageKey(key string) { k.key = key }
