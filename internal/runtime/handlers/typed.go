// Package handlers builds dispatch handler registrations from typed
// functions and carries the per-message context handlers receive.
package handlers

import (
	"context"
	"fmt"
	"reflect"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

// Registration is a handler plus the factory used to decode the inbound
// messages it consumes. Generic handlers have no factory.
type Registration struct {
	dispatch.HandlerRegistration
	Factory dispatch.MessageFactory
}

// Option customises a registration.
type Option func(*Registration)

// LocalOnly restricts the handler to injected messages. It never causes a
// channel to be joined.
func LocalOnly() Option {
	return func(r *Registration) { r.LocalOnly = true }
}

// Typed builds the registration of a handler for message type T. T must be
// a pointer type; its MessageFullName selects the messages handled.
func Typed[T contracts.Message](name string, fn func(ctx context.Context, msg T) error, opts ...Option) (Registration, error) {
	if fn == nil {
		return Registration{}, errspkg.ErrHandlerRequired
	}
	newT, err := prototypeFactory[T]()
	if err != nil {
		return Registration{}, err
	}

	messageType := newT().MessageFullName()
	if name == "" {
		name = messageType + "-Handler"
	}
	reg := Registration{
		HandlerRegistration: dispatch.HandlerRegistration{
			Name:        name,
			MessageType: messageType,
			Handle: func(ctx context.Context, msg contracts.Message) error {
				typed, ok := msg.(T)
				if !ok {
					return fmt.Errorf("handler %s: unexpected message %T", name, msg)
				}
				return fn(ctx, typed)
			},
		},
		Factory: func() contracts.Message { return newT() },
	}
	for _, opt := range opts {
		opt(&reg)
	}
	return reg, nil
}

// MustTyped is Typed that panics on error.
func MustTyped[T contracts.Message](name string, fn func(ctx context.Context, msg T) error, opts ...Option) Registration {
	reg, err := Typed(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Generic builds the registration of a handler receiving every message.
func Generic(name string, fn dispatch.HandlerFunc, opts ...Option) Registration {
	reg := Registration{HandlerRegistration: dispatch.HandlerRegistration{Name: name, Handle: fn}}
	for _, opt := range opts {
		opt(&reg)
	}
	return reg
}

func prototypeFactory[T contracts.Message]() (func() T, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrMessagePointerNeeded
	}
	elem := typ.Elem()
	return func() T {
		return reflect.New(elem).Interface().(T)
	}, nil
}
