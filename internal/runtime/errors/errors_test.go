package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrHandlerRequired", ErrHandlerRequired, "topicflow: handler function is required"},
		{"ErrChannelNotReady", ErrChannelNotReady, "topicflow: channel not ready for messaging"},
		{"ErrUnregisteredMessage", ErrUnregisteredMessage, "topicflow: no channel associated with message"},
		{"ErrInjectFromDispatch", ErrInjectFromDispatch, "topicflow: inject called from the dispatch goroutine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"parse", &ModelParseError{Source: "svc.yaml", Cause: errors.New("bad")}, ErrModelParse},
		{"duplicate model", &DuplicateModelError{Service: "a.B", Model: "m"}, ErrDuplicateModel},
		{"ambiguous", &AmbiguousMessageError{Message: "Order", Models: []string{"a.M", "b.M"}}, ErrAmbiguousMessage},
		{"not found", &MessageNotFoundError{Message: "Order"}, ErrMessageNotFound},
		{"channel", &ChannelNotFoundError{Service: "a.B", Message: "Order", Channel: "X"}, ErrChannelNotFound},
		{"default", &DuplicateDefaultChannelError{Service: "a.B", First: "X", Second: "Y"}, ErrDuplicateDefaultChannel},
		{"channel key", &ConflictingChannelDefinitionError{Service: "a.B", Channel: "X"}, ErrConflictingChannelDefinition},
		{"factory", &FactoryIDCollisionError{ID: 1<<32 | 7, Existing: "a.X", Incoming: "a.Y"}, ErrFactoryIDCollision},
		{"policy", &ConflictingPolicyError{Kind: "filter"}, ErrConflictingPolicy},
		{"interface", &InterfaceHandlerUnsupportedError{Handlers: []string{"h"}}, ErrInterfaceHandlerUnsupported},
		{"not ready", &ChannelNotReadyError{Bus: "b", Channel: "c"}, ErrChannelNotReady},
		{"unregistered", &UnregisteredMessageError{Message: "a.X"}, ErrUnregisteredMessage},
		{"topic", &TopicResolutionError{Channel: "c", Variable: "v", Reason: "no value"}, ErrTopicResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Fatalf("errors.Is(%T, %v) = false", tt.err, tt.sentinel)
			}
			if !strings.HasPrefix(tt.err.Error(), "topicflow: ") {
				t.Fatalf("unexpected message %q", tt.err.Error())
			}
		})
	}
}

func TestFactoryIDCollisionErrorSplitsIdentity(t *testing.T) {
	err := &FactoryIDCollisionError{ID: uint64(3)<<32 | 9, Existing: "a.X", Incoming: "a.Y"}
	if !strings.Contains(err.Error(), "factory 3, type 9") {
		t.Fatalf("identity not decoded in %q", err.Error())
	}
}

func TestConflictingPolicyErrorNamesBothProviders(t *testing.T) {
	err := &ConflictingPolicyError{
		Kind: "filters", Service: "a.B", Channel: "Orders",
		FirstProvider: "p1", FirstValue: "x>1",
		SecondProvider: "p2", SecondValue: "x>2",
	}
	msg := err.Error()
	for _, want := range []string{"p1", "p2", "x>1", "x>2", "Orders"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "topicflow: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		if !errors.Is(NewConfigValidationError(inner), inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
