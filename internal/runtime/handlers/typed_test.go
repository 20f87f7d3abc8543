package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
)

type priceTick struct {
	contracts.Keyed
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func (p *priceTick) MessageFactoryID() int32 { return 4 }
func (p *priceTick) MessageTypeID() int32    { return 1 }
func (p *priceTick) MessageFullName() string { return "com.acme.market.PriceTick" }

type tradeDone struct{ contracts.Keyed }

func (t *tradeDone) MessageFactoryID() int32 { return 4 }
func (t *tradeDone) MessageTypeID() int32    { return 2 }
func (t *tradeDone) MessageFullName() string { return "com.acme.market.TradeDone" }

type valueMessage struct{}

func (valueMessage) MessageFactoryID() int32 { return 1 }
func (valueMessage) MessageTypeID() int32    { return 1 }
func (valueMessage) MessageFullName() string { return "com.acme.Value" }
func (valueMessage) MessageKey() string      { return "" }
func (valueMessage) SetMessageKey(string)    {}

func TestTyped(t *testing.T) {
	var got *priceTick
	reg, err := Typed("ticks", func(_ context.Context, msg *priceTick) error {
		got = msg
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "ticks", reg.Name)
	assert.Equal(t, "com.acme.market.PriceTick", reg.MessageType)
	assert.False(t, reg.LocalOnly)

	fresh := reg.Factory()
	require.IsType(t, &priceTick{}, fresh)

	in := &priceTick{Symbol: "ACME"}
	require.NoError(t, reg.Handle(context.Background(), in))
	assert.Same(t, in, got)

	assert.Error(t, reg.Handle(context.Background(), &tradeDone{}))
}

func TestTyped_DefaultNameAndOptions(t *testing.T) {
	reg, err := Typed("", func(context.Context, *tradeDone) error { return nil }, LocalOnly())
	require.NoError(t, err)

	assert.Equal(t, "com.acme.market.TradeDone-Handler", reg.Name)
	assert.True(t, reg.LocalOnly)
}

func TestTyped_Errors(t *testing.T) {
	_, err := Typed[*priceTick]("ticks", nil)
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)

	_, err = Typed("value", func(context.Context, valueMessage) error { return nil })
	assert.ErrorIs(t, err, errspkg.ErrMessagePointerNeeded)

	assert.Panics(t, func() {
		MustTyped("value", func(context.Context, valueMessage) error { return nil })
	})
}

func TestGeneric(t *testing.T) {
	calls := 0
	reg := Generic("audit", func(context.Context, contracts.Message) error {
		calls++
		return nil
	}, LocalOnly())

	assert.Empty(t, reg.MessageType)
	assert.Nil(t, reg.Factory)
	assert.True(t, reg.LocalOnly)
	require.NoError(t, reg.Handle(context.Background(), &tradeDone{}))
	assert.Equal(t, 1, calls)
}

func TestCodec_JSON(t *testing.T) {
	payload, err := Marshal(&priceTick{Symbol: "ACME", Price: 12.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"ACME","price":12.5}`, string(payload))

	var out priceTick
	require.NoError(t, Unmarshal(payload, &out))
	assert.Equal(t, "ACME", out.Symbol)
	assert.Equal(t, 12.5, out.Price)

	assert.Error(t, Unmarshal([]byte("{"), &out))
}
