package dictionary

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAssets []Asset

func (s staticAssets) LoadAssets(context.Context) ([]Asset, error) {
	return s, nil
}

type staticClients []string

func (s staticClients) LoadTrustedClients(context.Context) ([]string, error) {
	return s, nil
}

func TestAssetsHolder_LoadAndLookup(t *testing.T) {
	h := NewAssetsHolder(staticAssets{{Symbol: "BTC", Accuracy: 8}, {Symbol: "USD", Accuracy: 2}}, zerolog.Nop())
	require.NoError(t, h.Load(context.Background()))

	a, err := h.Asset("BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(8), a.Accuracy)

	_, err = h.Asset("DOGE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAsset))
}

func TestAsset_RoundHalfAwayFromZero(t *testing.T) {
	a := Asset{Symbol: "USD", Accuracy: 2}

	v, _ := decimal.NewFromString("1.005")
	assert.Equal(t, "1.01", a.Round(v).String())

	v, _ = decimal.NewFromString("-1.005")
	assert.Equal(t, "-1.01", a.Round(v).String())

	v, _ = decimal.NewFromString("1.004")
	assert.Equal(t, "1.00", a.Round(v).StringFixed(2))
}

func TestSettingsHolder_TrustedClients(t *testing.T) {
	h := NewSettingsHolder(staticClients{"client-t"}, zerolog.Nop())
	require.NoError(t, h.Load(context.Background()))

	assert.True(t, h.IsTrustedClient("client-t"))
	assert.False(t, h.IsTrustedClient("client-x"))
}
