package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConfig struct {
	pubSubSystem string
}

func (m *mockConfig) GetPubSubSystem() string       { return m.pubSubSystem }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaClientID() string      { return "" }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return "" }
func (m *mockConfig) GetHTTPServerAddress() string  { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string   { return "" }
func (m *mockConfig) GetIOFile() string             { return "" }
func (m *mockConfig) GetAWSRegion() string          { return "" }
func (m *mockConfig) GetAWSAccountID() string       { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string     { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string { return "" }
func (m *mockConfig) GetAWSEndpoint() string        { return "" }

type mockPublisher struct {
	closed int
	err    error
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed++
	return m.err
}

type mockSubscriber struct {
	closed int
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	m.closed++
	return nil
}

func okBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return Transport{Publisher: &mockPublisher{}, Subscriber: &mockSubscriber{}}, nil
}

func TestRegistryRegisterAndNames(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Names())

	reg.Register("zeta", okBuilder)
	reg.Register("alpha", okBuilder)
	reg.Register("alpha", okBuilder)

	assert.True(t, reg.Has("alpha"))
	assert.False(t, reg.Has("beta"))
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
}

func TestRegistryCapabilities(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWithCapabilities("kv", okBuilder, Capabilities{Name: "kv", SupportsPartitionKey: true})

	assert.True(t, reg.GetCapabilities("kv").SupportsPartitionKey)

	unknown := reg.GetCapabilities("unknown")
	assert.Equal(t, Capabilities{Name: "unknown"}, unknown)
}

func TestRegistryBuild(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test", okBuilder)

	tr, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "test"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestRegistryBuildErrors(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register("failing", func(context.Context, Config, watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, boom
	})

	_, err := reg.Build(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrConfigRequired)

	_, err = reg.Build(context.Background(), &mockConfig{pubSubSystem: "missing"}, nil)
	assert.ErrorIs(t, err, ErrUnknownTransport)
	assert.Contains(t, err.Error(), `"missing"`)

	_, err = reg.Build(context.Background(), &mockConfig{pubSubSystem: "failing"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "build failing transport")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Register("transport", okBuilder)
				reg.Has("transport")
				reg.Names()
				reg.GetCapabilities("transport")
			}
		}()
	}
	wg.Wait()

	assert.True(t, reg.Has("transport"))
}

func TestPackageLevelRegistration(t *testing.T) {
	RegisterWithCapabilities("test-pkg-caps-transport", okBuilder, Capabilities{Name: "test-pkg-caps-transport", SupportsFilter: true})
	Register("test-pkg-transport", okBuilder)

	assert.True(t, DefaultRegistry.Has("test-pkg-transport"))
	assert.True(t, GetCapabilities("test-pkg-caps-transport").SupportsFilter)

	_, err := Build(context.Background(), &mockConfig{pubSubSystem: "nonexistent"}, nil)
	assert.ErrorIs(t, err, ErrUnknownTransport)
}
