package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/topicflow/internal/runtime/config"
	"github.com/drblury/topicflow/internal/runtime/contracts"
	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	transportpkg "github.com/drblury/topicflow/internal/runtime/transport"
	newtransport "github.com/drblury/topicflow/transport"
	"github.com/drblury/topicflow/transport/transporttest"
)

const marketModel = `
namespace: com.acme.market
name: MarketModel
factoryId: 21
types:
  - {name: QuotePublished, id: 1}
  - {name: TradeBooked, id: 2}
  - {name: MarketEvent, id: 3, abstract: true}
`

const marketService = `
namespace: com.acme
name: MarketService
models:
  - file: market.yaml
channels:
  - {name: Quotes, key: "QUOTES/${Venue}/${Symbol}", default: true, qos: best_effort}
  - {name: Trades, qos: guaranteed}
roles:
  - name: Desk
    to:
      - {message: QuotePublished}
      - {message: TradeBooked, channel: Trades}
`

type quotePublished struct {
	contracts.Keyed
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
}

func (q *quotePublished) MessageFactoryID() int32 { return 21 }
func (q *quotePublished) MessageTypeID() int32    { return 1 }
func (q *quotePublished) MessageFullName() string { return "com.acme.market.QuotePublished" }

func (q *quotePublished) AppendKeyField(dst []byte, field string) ([]byte, bool) {
	switch field {
	case "Venue":
		return append(dst, q.Venue...), true
	case "Symbol":
		return append(dst, q.Symbol...), true
	}
	return dst, false
}

type tradeBooked struct {
	contracts.Keyed
	TradeID string `json:"trade_id"`
}

func (t *tradeBooked) MessageFactoryID() int32 { return 21 }
func (t *tradeBooked) MessageTypeID() int32    { return 2 }
func (t *tradeBooked) MessageFullName() string { return "com.acme.market.TradeBooked" }

type marketEvent struct{ contracts.Keyed }

func (m *marketEvent) MessageFactoryID() int32 { return 21 }
func (m *marketEvent) MessageTypeID() int32    { return 3 }
func (m *marketEvent) MessageFullName() string { return "com.acme.market.MarketEvent" }

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// writeMarketService writes the market documents and returns a config
// loading them over the in-memory channel transport.
func writeMarketService(t *testing.T) *configpkg.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "market.yaml"), []byte(marketModel), 0o600))
	path := filepath.Join(dir, "service.yaml")
	require.NoError(t, os.WriteFile(path, []byte(marketService), 0o600))
	return &configpkg.Config{ServiceFiles: []string{path}, PubSubSystem: "channel"}
}

// fakeBuses hands out recording transports, one per bus.
type fakeBuses struct {
	caps newtransport.Capabilities
	pubs map[string]*transporttest.Publisher
	subs map[string]*transporttest.Subscriber
}

func newFakeBuses(caps newtransport.Capabilities) *fakeBuses {
	return &fakeBuses{
		caps: caps,
		pubs: map[string]*transporttest.Publisher{},
		subs: map[string]*transporttest.Subscriber{},
	}
}

func (f *fakeBuses) Build(_ context.Context, bus string, _ *configpkg.Config, _ watermill.LoggerAdapter) (newtransport.Transport, newtransport.Capabilities, error) {
	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}
	f.pubs[bus], f.subs[bus] = pub, sub
	return newtransport.Transport{Publisher: pub, Subscriber: sub}, f.caps, nil
}

var _ transportpkg.Factory = (*fakeBuses)(nil)
