package wallet

import (
	"github.com/shopspring/decimal"
)

// AssetBalance is one client's holdings of a single asset.
// Balance may be negative (legacy overdraft state); Reserved and
// ReservedForSwap are normally non-negative but can be pushed negative
// transiently by out-of-order releases.
type AssetBalance struct {
	Broker   string
	Account  string
	ClientID string
	Asset    string

	Balance         decimal.Decimal
	Reserved        decimal.Decimal // earmarked against open orders
	ReservedForSwap decimal.Decimal // earmarked against pending swap settlement

	// Version increases by one on every committed mutation and never
	// resets while the record exists.
	Version int64
}

// NewAssetBalance creates a zero balance record at version 1.
func NewAssetBalance(broker, account, clientID, asset string) *AssetBalance {
	return &AssetBalance{
		Broker:   broker,
		Account:  account,
		ClientID: clientID,
		Asset:    asset,
		Version:  1,
	}
}

// TotalReserved is the sum of both reservation legs.
func (b *AssetBalance) TotalReserved() decimal.Decimal {
	return b.Reserved.Add(b.ReservedForSwap)
}

// Available returns the balance usable for new operations.
// A non-positive total reservation never reduces availability.
func (b *AssetBalance) Available() decimal.Decimal {
	total := b.TotalReserved()
	if total.IsPositive() {
		return b.Balance.Sub(total)
	}
	return b.Balance
}

// AvailableReserved returns the functionally releasable order reservation.
// A reservation cannot exceed the funds that actually exist, so the value
// is clamped to the balance outside the 0 < reserved < balance range.
func (b *AssetBalance) AvailableReserved() decimal.Decimal {
	if b.Reserved.IsPositive() && b.Reserved.LessThan(b.Balance) {
		return b.Reserved
	}
	return b.Balance
}

// Copy returns a value-wise copy sharing no mutable state with the original.
func (b *AssetBalance) Copy() *AssetBalance {
	c := *b
	return &c
}

// Wallet is a client's complete set of asset balances. Balance records are
// created lazily on first touch and never deleted; zero balances remain.
type Wallet struct {
	Broker   string
	Account  string
	ClientID string
	Balances map[string]*AssetBalance
}

func NewWallet(broker, account, clientID string) *Wallet {
	return &Wallet{
		Broker:   broker,
		Account:  account,
		ClientID: clientID,
		Balances: make(map[string]*AssetBalance),
	}
}

// Balance returns the record for an asset, or nil if the pair was never touched.
func (w *Wallet) Balance(asset string) *AssetBalance {
	return w.Balances[asset]
}

// SetBalance installs a balance record, replacing any existing one.
func (w *Wallet) SetBalance(b *AssetBalance) {
	w.Balances[b.Asset] = b
}

// Copy deep-copies the wallet: every AssetBalance is copied value-wise so the
// result shares no mutable state with the original.
func (w *Wallet) Copy() *Wallet {
	c := NewWallet(w.Broker, w.Account, w.ClientID)
	for asset, b := range w.Balances {
		c.Balances[asset] = b.Copy()
	}
	return c
}
