package http

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/transport"
	"github.com/drblury/topicflow/transport/transporttest"
)

func TestRegister(t *testing.T) {
	Register()

	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.HTTPCapabilities, Capabilities())
}

func TestMarshalFunc(t *testing.T) {
	msg := message.NewMessage("uuid-1", []byte(`{}`))
	msg.Metadata.Set(transport.MetadataKey, "ORDERS/US/BOND")

	req, err := MarshalFunc("http://localhost:8080/")(`orderservice-Orders`, msg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/orderservice-Orders", req.URL.String())
	assert.Equal(t, "ORDERS/US/BOND", req.Header.Get(HeaderKey))

	req, err = MarshalFunc("http://localhost:8080")("a b", message.NewMessage("uuid-2", nil))
	require.NoError(t, err)
	assert.Equal(t, "/a%20b", req.URL.EscapedPath())
	assert.Empty(t, req.Header.Get(HeaderKey))
}

func TestBuild(t *testing.T) {
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	defer func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	}()

	var gotAddr string
	pub := &transporttest.Publisher{}
	PublisherFactory = func(config watermillhttp.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		assert.NotNil(t, config.MarshalMessageFunc)
		return pub, nil
	}
	SubscriberFactory = func(addr string, config watermillhttp.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		gotAddr = addr
		return &transporttest.Subscriber{}, nil
	}

	cfg := &transporttest.Config{HTTPServerAddress: ":8080", HTTPPublisherURL: "http://localhost:8080/"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, pub, tr.Publisher)
	assert.Equal(t, ":8080", gotAddr)

	boom := errors.New("listen failed")
	SubscriberFactory = func(string, watermillhttp.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return nil, boom
	}
	_, err = Build(context.Background(), cfg, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
	assert.True(t, pub.Closed)
}

func TestBuildRequiresAddress(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, ErrAddressRequired)
}
