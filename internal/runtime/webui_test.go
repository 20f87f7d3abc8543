package runtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/topicflow/internal/runtime/config"
	handlerpkg "github.com/drblury/topicflow/internal/runtime/handlers"
)

func newRoutesService(t *testing.T, origins ...string) *Service {
	t.Helper()
	conf := writeMarketService(t)
	conf.RoutesAPICORSAllowedOrigins = origins
	svc, _ := newFakeService(t, conf, ServiceDependencies{
		Handlers: []handlerpkg.Registration{quoteHandler(make(chan receivedQuote, 1))},
	})
	return svc
}

func TestRoutesSnapshot(t *testing.T) {
	svc := newRoutesService(t)

	snap := svc.Routes()
	require.Len(t, snap.Routes, 2)
	quotes := snap.Routes[0]
	assert.Equal(t, "com.acme.market.QuotePublished", quotes.Message)
	assert.Equal(t, "21:1", quotes.ID)
	assert.Equal(t, "com.acme.MarketService", quotes.Service)
	assert.Equal(t, configpkg.DefaultBus, quotes.Bus)
	assert.Equal(t, "Quotes", quotes.Channel)
	assert.False(t, quotes.Ready)
	assert.NotEmpty(t, quotes.Resolver)

	trades := snap.Routes[1]
	assert.Equal(t, "guaranteed", trades.Qos)
	assert.Empty(t, trades.Resolver)

	require.Len(t, snap.Joins, 1)
	assert.Equal(t, []string{"Quotes"}, snap.Joins[0].Channels)
	require.Len(t, snap.Handlers, 1)
	assert.Equal(t, "quotes", snap.Handlers[0].Name)
	assert.False(t, snap.Backup)

	_, err := svc.openChannels()
	require.NoError(t, err)
	assert.True(t, svc.Routes().Routes[0].Ready)
}

func TestHandleGetRoutesReturnsJSON(t *testing.T) {
	svc := newRoutesService(t, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
	rec := httptest.NewRecorder()
	svc.handleGetRoutes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content type, got %s", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be '*', got %s", got)
	}

	var payload RoutesSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if len(payload.Routes) != 2 || payload.Routes[0].Channel != "Quotes" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleGetRoutesCORS(t *testing.T) {
	svc := newRoutesService(t, "https://ops.acme.test")

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/routes", nil)
		req.Header.Set("Origin", "https://OPS.acme.test")
		rec := httptest.NewRecorder()
		svc.handleGetRoutes(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://OPS.acme.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origins get no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "https://evil.test")
		rec := httptest.NewRecorder()
		svc.handleGetRoutes(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHandleGetRoutesRejectsWrites(t *testing.T) {
	svc := newRoutesService(t)

	rec := httptest.NewRecorder()
	svc.handleGetRoutes(rec, httptest.NewRequest(http.MethodPost, "/api/routes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartRoutesAPIServerRegistersHandler(t *testing.T) {
	svc := newRoutesService(t)
	svc.StartRoutesAPIServer()
	assert.Empty(t, svc.httpServers)

	svc.Conf.RoutesAPIEnabled = true
	svc.StartRoutesAPIServer()
	assert.Contains(t, svc.httpServers, defaultRoutesAPIPort)
}
