package errors

import sterrors "errors"

// Configuration-time failures. Every one of them aborts service start-up
// before a channel is joined or a message is sent.
var (
	ErrModelParse                    = sterrors.New("topicflow: malformed document")
	ErrDuplicateModel                = sterrors.New("topicflow: duplicate schema model")
	ErrAmbiguousMessage              = sterrors.New("topicflow: ambiguous message reference")
	ErrMessageNotFound               = sterrors.New("topicflow: could not resolve message")
	ErrChannelNotFound               = sterrors.New("topicflow: could not find channel")
	ErrDuplicateDefaultChannel       = sterrors.New("topicflow: duplicate default channel")
	ErrConflictingChannelDefinition  = sterrors.New("topicflow: conflicting channel definition")
	ErrFactoryIDCollision            = sterrors.New("topicflow: factory id collision")
	ErrConflictingPolicy             = sterrors.New("topicflow: conflicting channel policy")
	ErrInterfaceHandlerUnsupported   = sterrors.New("topicflow: handlers for abstract message types are not supported")
	ErrServiceDefinitionRequired     = sterrors.New("topicflow: at least one service definition is required")
	ErrHandlerRequired               = sterrors.New("topicflow: handler function is required")
	ErrHandlerNameRequired           = sterrors.New("topicflow: handler name is required")
	ErrDuplicateHandler              = sterrors.New("topicflow: handler registered twice")
	ErrConfigRequired                = sterrors.New("topicflow: config is required")
	ErrLoggerRequired                = sterrors.New("topicflow: logger is required")
	ErrTransportFactoryBuildRequired = sterrors.New("topicflow: transport factory returned no bus")
	ErrMessagePointerNeeded          = sterrors.New("topicflow: handler message type must be a pointer")
)

// Runtime failures returned to the caller of Send or Inject.
var (
	ErrChannelNotReady     = sterrors.New("topicflow: channel not ready for messaging")
	ErrUnregisteredMessage = sterrors.New("topicflow: no channel associated with message")
	ErrTopicResolution     = sterrors.New("topicflow: topic resolution failed")
	ErrInjectFromDispatch  = sterrors.New("topicflow: inject called from the dispatch goroutine")
	ErrMessageRequired     = sterrors.New("topicflow: message is required")
	ErrNotStarted          = sterrors.New("topicflow: service not started")
	ErrUnknownInbound      = sterrors.New("topicflow: inbound message has no registered factory")
)
