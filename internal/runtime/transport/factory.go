// Package transport opens the buses a service routes over. A bus is one
// watermill publisher/subscriber pair built by the modular transport
// registry; the channels of the dispatch table are opened on it.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/topicflow/internal/runtime/config"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	newtransport "github.com/drblury/topicflow/transport"

	// Register the built-in transports.
	_ "github.com/drblury/topicflow/transport/transports"
)

// Factory abstracts how topicflow obtains the transport behind a bus.
type Factory interface {
	Build(ctx context.Context, bus string, conf *config.Config, logger watermill.LoggerAdapter) (newtransport.Transport, newtransport.Capabilities, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, bus string, conf *config.Config, logger watermill.LoggerAdapter) (newtransport.Transport, newtransport.Capabilities, error)

func (f FactoryFunc) Build(ctx context.Context, bus string, conf *config.Config, logger watermill.LoggerAdapter) (newtransport.Transport, newtransport.Capabilities, error) {
	return f(ctx, bus, conf, logger)
}

// DefaultFactory builds buses from the default transport registry, applying
// the per-bus overrides of the configuration.
func DefaultFactory() Factory {
	return RegistryFactory(newtransport.DefaultRegistry)
}

// RegistryFactory builds buses from reg.
func RegistryFactory(reg *newtransport.Registry) Factory {
	return FactoryFunc(func(ctx context.Context, bus string, conf *config.Config, logger watermill.LoggerAdapter) (newtransport.Transport, newtransport.Capabilities, error) {
		if conf == nil {
			return newtransport.Transport{}, newtransport.Capabilities{}, errspkg.ErrConfigRequired
		}
		busConf := conf.ForBus(bus)
		t, err := reg.Build(ctx, busConf, logger)
		if err != nil {
			return newtransport.Transport{}, newtransport.Capabilities{}, err
		}
		if t.Publisher == nil || t.Subscriber == nil {
			return newtransport.Transport{}, newtransport.Capabilities{}, errspkg.ErrTransportFactoryBuildRequired
		}
		return t, reg.GetCapabilities(busConf.GetPubSubSystem()), nil
	})
}
