package topicflow

import (
	"context"

	runtimepkg "github.com/drblury/topicflow/internal/runtime"
	configpkg "github.com/drblury/topicflow/internal/runtime/config"
	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/topicflow/internal/runtime/handlers"
	idspkg "github.com/drblury/topicflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/topicflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/topicflow/internal/runtime/metadata"
	"github.com/drblury/topicflow/internal/runtime/policy"
	"github.com/drblury/topicflow/internal/runtime/schema"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
	"github.com/drblury/topicflow/internal/runtime/topic"
	transportpkg "github.com/drblury/topicflow/internal/runtime/transport"
	newtransport "github.com/drblury/topicflow/transport"
)

type (
	Config               = configpkg.Config
	BusConfig            = configpkg.BusConfig
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Validator            = runtimepkg.Validator
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc
	Bus                  = transportpkg.Bus

	Message    = contracts.Message
	MessageID  = contracts.MessageID
	Keyed      = contracts.Keyed
	KeyFielder = contracts.KeyFielder
	Qos        = contracts.Qos

	HandlerRegistration = handlerpkg.Registration
	HandlerOption       = handlerpkg.Option
	HandlerFunc         = dispatch.HandlerFunc
	MessageFactory      = dispatch.MessageFactory
	MessageContext      = handlerpkg.MessageContext
	HandlerInfo         = runtimepkg.HandlerInfo

	SendOption = dispatch.SendOption
	SendResult = dispatch.Result
	Producer   = runtimepkg.Producer

	ServiceDefinition = servicedef.Service
	Channel           = servicedef.Channel
	SchemaModel       = schema.Model

	Join               = policy.Join
	QosProvider        = policy.QosProvider
	FilterProvider     = policy.FilterProvider
	InitialKRTProvider = policy.InitialKRTProvider
	JoinProvider       = policy.JoinProvider
	QosFunc            = policy.QosFunc
	FilterFunc         = policy.FilterFunc
	InitialKRTFunc     = policy.InitialKRTFunc
	JoinFunc           = policy.JoinFunc

	TopicProvider     = topic.Provider
	TopicProviderFunc = topic.ProviderFunc
	TopicResolver     = topic.Resolver
	ChannelInfo       = topic.ChannelInfo
	RawKRT            = topic.RawKRT

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	RouteInfo      = runtimepkg.RouteInfo
	RoutesSnapshot = runtimepkg.RoutesSnapshot

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
	ChannelNotReadyError  = errspkg.ChannelNotReadyError

	// Modular transport types.
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

const (
	BestEffort = contracts.QosBestEffort
	Guaranteed = contracts.QosGuaranteed

	JoinDefault = policy.JoinDefault
	JoinAlways  = policy.JoinAlways
	JoinNever   = policy.JoinNever

	DefaultBus = configpkg.DefaultBus
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfig     = configpkg.LoadFile

	Generic   = handlerpkg.Generic
	LocalOnly = handlerpkg.LocalOnly

	WithTopic  = dispatch.WithTopic
	WithRawKRT = dispatch.WithRawKRT
	WithKRT    = dispatch.WithKRT
	NewRawKRT  = topic.NewRawKRT

	RegisterGeneratedTopics = topic.RegisterGenerated
	NewMessageID            = contracts.NewMessageID
	ParseQos                = contracts.ParseQos

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	// Modular transport registry. Transports self-register from their
	// packages; import github.com/drblury/topicflow/transport/transports for
	// all of them.
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build
	GetCapabilities          = newtransport.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrModelParse                   = errspkg.ErrModelParse
	ErrDuplicateModel               = errspkg.ErrDuplicateModel
	ErrAmbiguousMessage             = errspkg.ErrAmbiguousMessage
	ErrMessageNotFound              = errspkg.ErrMessageNotFound
	ErrChannelNotFound              = errspkg.ErrChannelNotFound
	ErrDuplicateDefaultChannel      = errspkg.ErrDuplicateDefaultChannel
	ErrConflictingChannelDefinition = errspkg.ErrConflictingChannelDefinition
	ErrFactoryIDCollision           = errspkg.ErrFactoryIDCollision
	ErrConflictingPolicy            = errspkg.ErrConflictingPolicy
	ErrInterfaceHandlerUnsupported  = errspkg.ErrInterfaceHandlerUnsupported
	ErrServiceDefinitionRequired    = errspkg.ErrServiceDefinitionRequired
	ErrHandlerRequired              = errspkg.ErrHandlerRequired
	ErrConfigRequired               = errspkg.ErrConfigRequired
	ErrLoggerRequired               = errspkg.ErrLoggerRequired
	ErrChannelNotReady              = errspkg.ErrChannelNotReady
	ErrUnregisteredMessage          = errspkg.ErrUnregisteredMessage
	ErrTopicResolution              = errspkg.ErrTopicResolution
	ErrInjectFromDispatch           = errspkg.ErrInjectFromDispatch

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger

	NewMetadata          = metadatapkg.New
	WithOutgoingMetadata = handlerpkg.WithOutgoingMetadata
	MessageContextFrom   = handlerpkg.FromContext
	IsDispatchContext    = dispatch.OnDispatchGoroutine
	CreateULID           = idspkg.CreateULID
)

// Metadata keys carried by every message a bus emits.
const (
	MetadataKeyCorrelationID = handlerpkg.MetadataKeyCorrelationID
	MetadataKeyMessageType   = handlerpkg.MetadataKeyMessageType
	MetadataKeyMessageID     = handlerpkg.MetadataKeyMessageID
	MetadataKeyKey           = handlerpkg.MetadataKeyKey
	MetadataKeyQos           = handlerpkg.MetadataKeyQos
	MetadataKeyTraceID       = handlerpkg.MetadataKeyTraceID
	MetadataKeySpanID        = handlerpkg.MetadataKeySpanID
)

// Typed registers fn as the handler of message type T.
func Typed[T Message](name string, fn func(ctx context.Context, msg T) error, opts ...HandlerOption) (HandlerRegistration, error) {
	return handlerpkg.Typed(name, fn, opts...)
}

// MustTyped is Typed that panics on error.
func MustTyped[T Message](name string, fn func(ctx context.Context, msg T) error, opts ...HandlerOption) HandlerRegistration {
	return handlerpkg.MustTyped(name, fn, opts...)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
