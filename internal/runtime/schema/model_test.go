package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

const ordersModel = `
namespace: com.acme.orders
name: OrderModel
factoryId: 10
types:
  - name: OrderCreated
    id: 1
    fields:
      - {name: Region, type: string}
      - {name: Product, type: string}
  - name: OrderEvent
    id: 2
    abstract: true
  - name: Side
    kind: enum
`

func TestParseYAMLModel(t *testing.T) {
	m, err := Parse([]byte(ordersModel), FormatYAML, "orders.yaml")
	require.NoError(t, err)

	assert.Equal(t, "com.acme.orders.OrderModel", m.QualifiedName())
	assert.Equal(t, "orders.yaml", m.Source)

	created, ok := m.Message("OrderCreated")
	require.True(t, ok)
	assert.Equal(t, "com.acme.orders.OrderCreated", created.FullName())
	assert.Equal(t, contracts.NewMessageID(10, 1), created.MessageID())
	assert.True(t, created.HasField("Region"))
	assert.False(t, created.HasField("Price"))
	assert.Same(t, m, created.Model())

	_, ok = m.Message("Side")
	assert.False(t, ok, "enums are not messages")
	side, ok := m.Lookup("Side")
	require.True(t, ok)
	assert.Equal(t, KindEnum, side.Kind)

	assert.Len(t, m.Messages(), 2)
}

func TestParseJSONModel(t *testing.T) {
	doc := `{"namespace":"com.acme.market","name":"MarketModel","factoryId":3,
		"types":[{"name":"Quote","id":4,"fields":[{"name":"Symbol","type":"string"}]}]}`

	m, err := Parse([]byte(doc), FormatJSON, "market.json")
	require.NoError(t, err)

	quote, ok := m.Message("Quote")
	require.True(t, ok)
	assert.Equal(t, contracts.NewMessageID(3, 4), quote.MessageID())
}

func TestParseRejectsInvalidModels(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "name: [broken"},
		{"missing name", "namespace: a\ntypes: []"},
		{"duplicate type", "name: M\ntypes:\n  - {name: A}\n  - {name: A}"},
		{"unknown kind", "name: M\ntypes:\n  - {name: A, kind: service}"},
		{"unnamed type", "name: M\ntypes:\n  - {id: 3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML, "bad.yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errspkg.ErrModelParse), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersModel), 0o600))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OrderModel", m.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, errspkg.ErrModelParse)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatOf("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatOf("a/b"))
}

func TestNewModel(t *testing.T) {
	m, err := New("com.acme", "Gen", 5, &Type{Name: "Ping", ID: 1})
	require.NoError(t, err)
	ping, ok := m.Message("Ping")
	require.True(t, ok)
	assert.Equal(t, "com.acme.Ping", ping.FullName())

	_, err = New("com.acme", "", 5)
	assert.ErrorIs(t, err, errspkg.ErrModelParse)
}
