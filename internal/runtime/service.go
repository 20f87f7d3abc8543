package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/topicflow/internal/runtime/config"
	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/topicflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/policy"
	"github.com/drblury/topicflow/internal/runtime/servicedef"
	"github.com/drblury/topicflow/internal/runtime/topic"
	transportpkg "github.com/drblury/topicflow/internal/runtime/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// Validator validates decoded inbound messages. Implementations typically
// forward to protovalidate or a custom struct validator.
type Validator interface {
	Validate(value any) error
}

// ServiceDependencies holds everything the configuration pass consumes
// besides the Config. Leave fields nil to skip the related feature.
type ServiceDependencies struct {
	// Services are added to the ones loaded from Config.ServiceFiles.
	Services []*servicedef.Service
	// Handlers decide which channels are joined and receive inbound and
	// injected messages on the dispatch goroutine.
	Handlers []handlerpkg.Registration
	// Messages registers decoders for inbound message types that have no
	// typed handler, for example those consumed by a generic handler.
	Messages []dispatch.MessageFactory
	// Policies are channel policy providers (QoS, filter, initial key
	// resolution table, join), applied in order.
	Policies []any
	// TopicProviders supply topic resolvers. Later providers win.
	TopicProviders []topic.Provider

	Validator                 Validator
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory
	// Registerer receives the send metrics when metrics are enabled.
	// Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Service runs the routing configuration of one process: the dispatch
// table, the buses behind it and the Watermill router consuming the
// joined channels.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	services  []*servicedef.Service
	handlers  []handlerpkg.Registration
	table     *dispatch.Table
	factories *dispatch.FactoryRegistry

	sender     *dispatch.Sender
	dispatcher *dispatch.Dispatcher
	validator  Validator

	buses    map[string]*transportpkg.Bus
	busNames []string
	router   *message.Router
	metrics  *sendMetrics

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	started atomic.Bool
}

// NewService constructs a Service for the supplied configuration. It panics
// on configuration errors; use TryNewService to handle them.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService runs the configuration pass: it loads the service
// definitions, resolves the channel policies, builds the dispatch table and
// the buses. No channel is opened before Start.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating topicflow service", loggingpkg.LogFields{
		"pubsub_system": conf.GetPubSubSystem(),
		"config":        conf,
	})

	s := &Service{
		Conf:      conf,
		Logger:    log,
		handlers:  deps.Handlers,
		validator: deps.Validator,
		buses:     map[string]*transportpkg.Bus{},
	}

	if err := s.configure(deps); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if !conf.MetricsEnabled {
		registerer = nil
	}
	if s.metrics, err = newSendMetrics(registerer); err != nil {
		return nil, err
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	if err := s.buildBuses(ctx, factory); err != nil {
		_ = s.closeBuses()
		return nil, err
	}

	return s, nil
}

// configure runs the single-goroutine configuration pass.
func (s *Service) configure(deps ServiceDependencies) error {
	loaderOpts := []servicedef.LoaderOption{
		servicedef.WithSchemaPaths(s.Conf.SchemaPaths...),
		servicedef.WithDefaultBus(configpkg.DefaultBus),
	}
	if s.Conf.PrefixChannelNames != nil {
		loaderOpts = append(loaderOpts, servicedef.WithPrefixChannelNames(*s.Conf.PrefixChannelNames))
	}
	services, err := servicedef.NewLoader(s.Logger, loaderOpts...).LoadAll(s.Conf.ServiceFiles)
	if err != nil {
		return err
	}
	services = append(services, deps.Services...)
	if len(services) == 0 {
		return errspkg.ErrServiceDefinitionRequired
	}
	s.services = services

	handlers := dispatch.NewHandlerTable()
	s.factories = dispatch.NewFactoryRegistry()
	for _, reg := range deps.Handlers {
		if err := handlers.Add(reg.HandlerRegistration); err != nil {
			return err
		}
		if reg.Factory != nil {
			if err := s.factories.Register(reg.Factory); err != nil {
				return err
			}
		}
	}
	for _, newFn := range deps.Messages {
		if err := s.factories.Register(newFn); err != nil {
			return err
		}
	}
	if err := handlers.CheckAbstract(services); err != nil {
		return err
	}

	agg := policy.NewAggregator(s.Logger, policy.WithGenericHandlerJoinsAll(s.Conf.GenericHandlerJoinsAll))
	for _, p := range deps.Policies {
		if err := agg.Register(p); err != nil {
			return err
		}
	}
	res, err := agg.Resolve(services, handlers)
	if err != nil {
		return err
	}

	topics := topic.NewRegistry(s.Logger)
	for _, p := range deps.TopicProviders {
		topics.AddProvider(p)
	}
	table, err := dispatch.NewBuilder(s.Logger, topics, s.factories).Build(res)
	if err != nil {
		return err
	}

	s.table = table
	s.sender = dispatch.NewSender(table, s, s.Logger)
	s.dispatcher = dispatch.NewDispatcher(table, handlers, s.Logger, s.Conf.DispatchQueueSize)
	return nil
}

func (s *Service) buildBuses(ctx context.Context, factory transportpkg.Factory) error {
	wmLogger := loggingpkg.NewWatermillAdapter(s.Logger)
	for _, spec := range s.table.ChannelSpecs() {
		if _, ok := s.buses[spec.Bus]; ok {
			continue
		}
		tr, caps, err := factory.Build(ctx, spec.Bus, s.Conf, wmLogger)
		if err != nil {
			return fmt.Errorf("bus %s: %w", spec.Bus, err)
		}
		s.buses[spec.Bus] = transportpkg.NewBus(spec.Bus, tr, caps, s.table, s.Logger)
		s.busNames = append(s.busNames, spec.Bus)
	}
	sort.Strings(s.busNames)
	return nil
}

// Start opens every channel, joins the ones the configuration decided to
// join and runs the dispatch goroutine until ctx is cancelled. The buses
// are closed on return.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("topicflow: service already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	joined, err := s.openChannels()
	if err != nil {
		return errors.Join(err, s.closeBuses())
	}

	s.StartRoutesAPIServer()
	s.startHTTPServers()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		_ = s.dispatcher.Run(ctx)
	}()

	if joined > 0 {
		err = routerRun(s.router, ctx)
	} else {
		<-ctx.Done()
	}
	cancel()
	<-dispatchDone

	return errors.Join(err, s.closeBuses())
}

// Running is closed once the router consumes every joined channel.
func (s *Service) Running() <-chan struct{} {
	return s.router.Running()
}

func (s *Service) openChannels() (int, error) {
	joined := 0
	for _, spec := range s.table.ChannelSpecs() {
		bus := s.buses[spec.Bus]
		if _, err := bus.Open(spec); err != nil {
			return joined, err
		}
		s.metrics.channelsUp.WithLabelValues(spec.Bus).Inc()
		if !spec.Join {
			continue
		}
		sub, err := bus.Subscriber(spec.Name)
		if err != nil {
			return joined, err
		}
		s.router.AddNoPublisherHandler(
			spec.Bus+"/"+spec.Name,
			spec.Name,
			sub,
			s.inboundHandler(spec),
		)
		joined++
	}
	return joined, nil
}

// Close releases the buses of a service that was never started. A started
// service closes them when Start returns.
func (s *Service) Close() error {
	if s.started.Load() {
		return nil
	}
	return s.closeBuses()
}

func (s *Service) closeBuses() error {
	var errs []error
	for _, name := range s.busNames {
		if err := s.buses[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus %s: %w", name, err))
		}
		s.metrics.channelsUp.WithLabelValues(name).Set(0)
	}
	return errors.Join(errs...)
}

// Table exposes the dispatch table.
func (s *Service) Table() *dispatch.Table { return s.table }

// Services returns the resolved service definitions.
func (s *Service) Services() []*servicedef.Service {
	return append([]*servicedef.Service(nil), s.services...)
}

// Bus returns the named bus.
func (s *Service) Bus(name string) (*transportpkg.Bus, bool) {
	b, ok := s.buses[name]
	return b, ok
}

// Inject queues msg for the local handlers. It must not be called from a
// handler.
func (s *Service) Inject(ctx context.Context, msg contracts.Message) error {
	ctx = handlerpkg.WithMessageContext(ctx, handlerpkg.MessageContext{Injected: true, Logger: s.Logger})
	return s.dispatcher.Inject(ctx, msg)
}

func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
