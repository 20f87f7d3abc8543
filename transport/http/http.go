// Package http provides the HTTP push transport. Messages are POSTed to
// the publisher base URL followed by the channel name; the subscriber serves
// one route per joined channel.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/topicflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// HeaderKey carries the resolved message key on outbound requests.
const HeaderKey = "X-Topicflow-Key"

// ErrAddressRequired is returned when neither side of the transport is
// configured.
var ErrAddressRequired = errors.New("http: server address or publisher URL is required")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	Register()
}

// Register registers the HTTP transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// MarshalFunc builds the request for one message. The channel name is
// path-escaped and appended to base.
func MarshalFunc(base string) http.MarshalMessageFunc {
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		req, err := http.DefaultMarshalMessageFunc(strings.TrimSuffix(base, "/")+"/"+url.PathEscape(topic), msg)
		if err != nil {
			return nil, err
		}
		if key := msg.Metadata.Get(transport.MetadataKey); key != "" {
			req.Header.Set(HeaderKey, key)
		}
		return req, nil
	}
}

// Build creates a new HTTP transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	serverAddr := cfg.GetHTTPServerAddress()
	publisherURL := cfg.GetHTTPPublisherURL()
	if serverAddr == "" && publisherURL == "" {
		return transport.Transport{}, ErrAddressRequired
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{MarshalMessageFunc: MarshalFunc(publisherURL)},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		serverAddr,
		http.SubscriberConfig{UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	if s, ok := subscriber.(*http.Subscriber); ok {
		go func() {
			if err := s.StartHTTPServer(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				logger.Error("Failed to start HTTP subscriber server", err, watermill.LogFields{"address": serverAddr})
			}
		}()
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
