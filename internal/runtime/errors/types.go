package errors

import (
	"fmt"
	"strings"
)

// ModelParseError reports a document that could not be decoded.
type ModelParseError struct {
	Source string
	Cause  error
}

func (e *ModelParseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("topicflow: malformed document %q", e.Source)
	}
	return fmt.Sprintf("topicflow: malformed document %q: %v", e.Source, e.Cause)
}

func (e *ModelParseError) Unwrap() error { return e.Cause }

func (e *ModelParseError) Is(target error) bool { return target == ErrModelParse }

// DuplicateModelError reports two imported schema models sharing a name.
type DuplicateModelError struct {
	Service string
	Model   string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("topicflow: service %s imports schema model %s more than once", e.Service, e.Model)
}

func (e *DuplicateModelError) Is(target error) bool { return target == ErrDuplicateModel }

// AmbiguousMessageError reports a message name defined by more than one
// candidate model.
type AmbiguousMessageError struct {
	Message string
	Models  []string
}

func (e *AmbiguousMessageError) Error() string {
	return fmt.Sprintf("topicflow: ambiguous model for message %s, defined in [%s]; qualify the message or add a model hint",
		e.Message, strings.Join(e.Models, ", "))
}

func (e *AmbiguousMessageError) Is(target error) bool { return target == ErrAmbiguousMessage }

// MessageNotFoundError reports a message reference that no model defines.
type MessageNotFoundError struct {
	Message string
	Model   string
}

func (e *MessageNotFoundError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("topicflow: could not resolve message %s in model %s", e.Message, e.Model)
	}
	return fmt.Sprintf("topicflow: could not resolve message %s in any imported model", e.Message)
}

func (e *MessageNotFoundError) Is(target error) bool { return target == ErrMessageNotFound }

// ChannelNotFoundError reports a role entry whose channel cannot be determined.
type ChannelNotFoundError struct {
	Service string
	Message string
	Channel string
	Reason  string
}

func (e *ChannelNotFoundError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("topicflow: could not find channel %s in service %s for message %s", e.Channel, e.Service, e.Message)
	}
	return fmt.Sprintf("topicflow: could not resolve channel for message %s in service %s: %s", e.Message, e.Service, e.Reason)
}

func (e *ChannelNotFoundError) Is(target error) bool { return target == ErrChannelNotFound }

// DuplicateDefaultChannelError reports a second channel flagged as default.
type DuplicateDefaultChannelError struct {
	Service string
	First   string
	Second  string
}

func (e *DuplicateDefaultChannelError) Error() string {
	return fmt.Sprintf("topicflow: channels %s and %s of service %s are both configured as default", e.First, e.Second, e.Service)
}

func (e *DuplicateDefaultChannelError) Is(target error) bool { return target == ErrDuplicateDefaultChannel }

// ConflictingChannelDefinitionError reports two declarations of one channel
// name with different key templates.
type ConflictingChannelDefinitionError struct {
	Service   string
	Channel   string
	FirstKey  string
	SecondKey string
}

func (e *ConflictingChannelDefinitionError) Error() string {
	return fmt.Sprintf("topicflow: channel %s of service %s declared with conflicting keys %q and %q",
		e.Channel, e.Service, e.FirstKey, e.SecondKey)
}

func (e *ConflictingChannelDefinitionError) Is(target error) bool {
	return target == ErrConflictingChannelDefinition
}

// FactoryIDCollisionError reports two message types sharing one identity.
type FactoryIDCollisionError struct {
	ID       uint64
	Existing string
	Incoming string
}

func (e *FactoryIDCollisionError) Error() string {
	return fmt.Sprintf("topicflow: factory id collision: %s and %s share message id %d (factory %d, type %d)",
		e.Existing, e.Incoming, e.ID, int32(e.ID>>32), int32(uint32(e.ID)))
}

func (e *FactoryIDCollisionError) Is(target error) bool { return target == ErrFactoryIDCollision }

// ConflictingPolicyError reports two providers disagreeing about a channel.
type ConflictingPolicyError struct {
	Kind           string
	Service        string
	Channel        string
	FirstProvider  string
	FirstValue     any
	SecondProvider string
	SecondValue    any
}

func (e *ConflictingPolicyError) Error() string {
	return fmt.Sprintf("topicflow: conflicting channel %s provided for channel %s of service %s: %s returned %v, %s returned %v",
		e.Kind, e.Channel, e.Service, e.FirstProvider, e.FirstValue, e.SecondProvider, e.SecondValue)
}

func (e *ConflictingPolicyError) Is(target error) bool { return target == ErrConflictingPolicy }

// InterfaceHandlerUnsupportedError lists every handler declared against an
// abstract message type.
type InterfaceHandlerUnsupportedError struct {
	Handlers []string
}

func (e *InterfaceHandlerUnsupportedError) Error() string {
	return fmt.Sprintf("topicflow: handlers for abstract message types are not supported: [%s]", strings.Join(e.Handlers, ", "))
}

func (e *InterfaceHandlerUnsupportedError) Is(target error) bool {
	return target == ErrInterfaceHandlerUnsupported
}

// ChannelNotReadyError is returned when a send targets a channel that has not
// come up yet.
type ChannelNotReadyError struct {
	Bus     string
	Channel string
	Message string
}

func (e *ChannelNotReadyError) Error() string {
	return fmt.Sprintf("topicflow: channel %s on bus %s not ready for messaging (message %s)", e.Channel, e.Bus, e.Message)
}

func (e *ChannelNotReadyError) Is(target error) bool { return target == ErrChannelNotReady }

// UnregisteredMessageError is returned for messages absent from the dispatch table.
type UnregisteredMessageError struct {
	Message string
	ID      uint64
}

func (e *UnregisteredMessageError) Error() string {
	return fmt.Sprintf("topicflow: no channel associated with message %s (id %d)", e.Message, e.ID)
}

func (e *UnregisteredMessageError) Is(target error) bool { return target == ErrUnregisteredMessage }

// TopicResolutionError is returned when a key variable has no value.
type TopicResolutionError struct {
	Channel  string
	Variable string
	Reason   string
}

func (e *TopicResolutionError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("topicflow: cannot resolve topic for channel %s: %s", e.Channel, e.Reason)
	}
	return fmt.Sprintf("topicflow: cannot resolve topic for channel %s: variable %s: %s", e.Channel, e.Variable, e.Reason)
}

func (e *TopicResolutionError) Is(target error) bool { return target == ErrTopicResolution }

// ConfigValidationError wraps the joined result of Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "topicflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
