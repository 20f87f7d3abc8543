package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	"github.com/drblury/topicflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	newtransport "github.com/drblury/topicflow/transport"
	"github.com/drblury/topicflow/transport/transporttest"
)

type recordingListener struct {
	up   []*dispatch.ChannelHandle
	down []string
}

func (l *recordingListener) OnChannelUp(h *dispatch.ChannelHandle) { l.up = append(l.up, h) }

func (l *recordingListener) OnChannelDown(bus, channel string) {
	l.down = append(l.down, bus+"/"+channel)
}

func newTestBus(sub message.Subscriber, caps newtransport.Capabilities) (*Bus, *transporttest.Publisher, *recordingListener) {
	pub := &transporttest.Publisher{}
	l := &recordingListener{}
	return NewBus("default", newtransport.Transport{Publisher: pub, Subscriber: sub}, caps, l, nil), pub, l
}

func TestBus_OpenIsIdempotent(t *testing.T) {
	bus, _, l := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)
	spec := dispatch.ChannelSpec{Bus: "default", Name: "orders", Qos: contracts.QosBestEffort}

	first, err := bus.Open(spec)
	require.NoError(t, err)
	second, err := bus.Open(spec)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, l.up, 1)
	assert.Equal(t, "orders", first.Channel)
	ch, ok := first.Ref.(*Channel)
	require.True(t, ok)
	assert.Same(t, bus, ch.Bus())
	assert.Equal(t, spec, ch.Spec())
}

func TestBus_OpenRejectsForeignSpec(t *testing.T) {
	bus, _, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)

	_, err := bus.Open(dispatch.ChannelSpec{Bus: "audit", Name: "orders"})
	assert.Error(t, err)
}

func TestBus_PublishBestEffortSwallowsErrors(t *testing.T) {
	bus, pub, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)
	h, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "orders", Qos: contracts.QosBestEffort})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(h, message.NewMessage("1", nil)))
	require.Len(t, pub.Calls(), 1)
	assert.Equal(t, "orders", pub.Calls()[0].Topic)

	pub.Err = errors.New("broker gone")
	assert.NoError(t, bus.Publish(h, message.NewMessage("2", nil)))
}

func TestBus_PublishGuaranteedReturnsErrors(t *testing.T) {
	bus, pub, _ := newTestBus(&transporttest.Subscriber{}, newtransport.KafkaCapabilities)
	h, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "payments", Qos: contracts.QosGuaranteed})
	require.NoError(t, err)

	boom := errors.New("broker gone")
	pub.Err = boom
	assert.ErrorIs(t, bus.Publish(h, message.NewMessage("1", nil)), boom)
}

func TestBus_PublishForeignHandle(t *testing.T) {
	bus, _, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)
	other, _, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)
	h, err := other.Open(dispatch.ChannelSpec{Bus: "default", Name: "orders"})
	require.NoError(t, err)

	assert.Error(t, bus.Publish(h, message.NewMessage("1", nil)))
	assert.Error(t, bus.Publish(&dispatch.ChannelHandle{Bus: "default", Channel: "orders"}, message.NewMessage("1", nil)))
}

func TestBus_SubscriberAppliesFilter(t *testing.T) {
	sub := &transporttest.FilteredSubscriber{}
	bus, _, _ := newTestBus(sub, newtransport.NATSJetStreamCapabilities)
	_, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "orders", Filter: "eu.*", HasFilter: true})
	require.NoError(t, err)

	s, err := bus.Subscriber("orders")
	require.NoError(t, err)
	_, err = s.Subscribe(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"orders": "eu.*"}, sub.Filters)
}

func TestBus_SubscriberIgnoresFilterWithoutSupport(t *testing.T) {
	sub := &transporttest.Subscriber{}
	bus, _, _ := newTestBus(sub, newtransport.ChannelCapabilities)
	_, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "orders", Filter: "eu.*", HasFilter: true})
	require.NoError(t, err)

	s, err := bus.Subscriber("orders")
	require.NoError(t, err)
	assert.Same(t, sub, s)
}

func TestBus_SubscriberUnknownChannel(t *testing.T) {
	bus, _, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)

	_, err := bus.Subscriber("missing")
	assert.Error(t, err)
}

func TestBus_CloseReportsChannelsDown(t *testing.T) {
	sub := &transporttest.Subscriber{}
	bus, pub, l := newTestBus(sub, newtransport.ChannelCapabilities)
	for _, name := range []string{"b", "a"} {
		_, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: name})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{"default/a", "default/b"}, l.down)
	assert.True(t, pub.Closed)
	assert.True(t, sub.Closed)

	_, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "c"})
	assert.Error(t, err)
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus, _, _ := newTestBus(&transporttest.Subscriber{}, newtransport.ChannelCapabilities)
	h, err := bus.Open(dispatch.ChannelSpec{Bus: "default", Name: "orders", Qos: contracts.QosBestEffort})
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	err = bus.Publish(h, message.NewMessage("1", nil))
	assert.ErrorIs(t, err, errspkg.ErrChannelNotReady)
}
