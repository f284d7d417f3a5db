package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssetBalance(t *testing.T) {
	b := NewAssetBalance("broker-1", "account-1", "client-1", "BTC")

	assert.Equal(t, int64(1), b.Version)
	assert.True(t, b.Balance.IsZero())
	assert.True(t, b.Reserved.IsZero())
	assert.True(t, b.ReservedForSwap.IsZero())
}

func TestAssetBalance_Available(t *testing.T) {
	b := NewAssetBalance("b", "a", "c", "BTC")
	b.Balance = d("10")
	b.Reserved = d("3")
	b.ReservedForSwap = d("2")
	assert.True(t, b.Available().Equal(d("5")))

	// A non-positive total reservation never reduces availability.
	b.Reserved = d("-1")
	b.ReservedForSwap = d("0")
	assert.True(t, b.Available().Equal(d("10")))

	b.Reserved = d("0")
	assert.True(t, b.Available().Equal(d("10")))
}

func TestAssetBalance_AvailableReserved(t *testing.T) {
	b := NewAssetBalance("b", "a", "c", "BTC")
	b.Balance = d("10")

	b.Reserved = d("4")
	assert.True(t, b.AvailableReserved().Equal(d("4")))

	// Reservation above the balance clamps to the balance.
	b.Reserved = d("15")
	assert.True(t, b.AvailableReserved().Equal(d("10")))

	b.Reserved = d("0")
	assert.True(t, b.AvailableReserved().Equal(d("10")))

	b.Reserved = d("-2")
	assert.True(t, b.AvailableReserved().Equal(d("10")))
}

func TestAssetBalance_TotalReserved(t *testing.T) {
	b := NewAssetBalance("b", "a", "c", "BTC")
	b.Reserved = d("1.5")
	b.ReservedForSwap = d("0.25")
	assert.True(t, b.TotalReserved().Equal(d("1.75")))
}

func TestWallet_Copy(t *testing.T) {
	w := NewWallet("broker-1", "account-1", "client-1")
	b := NewAssetBalance("broker-1", "account-1", "client-1", "BTC")
	b.Balance = d("10")
	w.SetBalance(b)

	c := w.Copy()
	require.NotNil(t, c.Balance("BTC"))

	c.Balance("BTC").Balance = d("99")
	c.Balance("BTC").Version = 7

	assert.True(t, w.Balance("BTC").Balance.Equal(d("10")))
	assert.Equal(t, int64(1), w.Balance("BTC").Version)
}

func TestWallet_BalanceMiss(t *testing.T) {
	w := NewWallet("broker-1", "account-1", "client-1")
	assert.Nil(t, w.Balance("ETH"))
}

func TestOperation_Key(t *testing.T) {
	op := Operation{ClientID: "client-1", Asset: "BTC"}
	assert.Equal(t, Key{ClientID: "client-1", Asset: "BTC"}, op.Key())
	assert.Equal(t, "client-1:BTC", op.Key().String())
}

func TestOperation_EqualIgnoresScale(t *testing.T) {
	a := Operation{ClientID: "c", Asset: "BTC", Amount: d("1.50")}
	b := Operation{ClientID: "c", Asset: "BTC", Amount: d("1.5000")}
	assert.True(t, a.Equal(b))

	b.Amount = d("1.51")
	assert.False(t, a.Equal(b))
}

func TestClientBalanceUpdate_IsNoop(t *testing.T) {
	u := ClientBalanceUpdate{
		OldBalance:  d("0.50"),
		NewBalance:  d("0.5000"),
		OldReserved: d("1"),
		NewReserved: d("1.0"),
	}
	assert.True(t, u.IsNoop())

	u.NewBalance = d("0.51")
	assert.False(t, u.IsNoop())
}
