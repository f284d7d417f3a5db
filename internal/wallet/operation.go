package wallet

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Operation is a signed delta intent against one client's one asset.
// Amount applies to the balance, ReservedAmount to the order reservation,
// ReservedForSwapAmount to the swap reservation. Operations targeting the
// same (client, asset) pair within one batch are summed before validation.
type Operation struct {
	Broker   string
	Account  string
	ClientID string
	Asset    string

	Amount                decimal.Decimal
	ReservedAmount        decimal.Decimal
	ReservedForSwapAmount decimal.Decimal
}

// Key is the aggregation bucket for an operation batch. Order across
// different keys is irrelevant; within a key only the sum matters.
type Key struct {
	ClientID string
	Asset    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.ClientID, k.Asset)
}

// Key returns the (client, asset) aggregation bucket.
func (o Operation) Key() Key {
	return Key{ClientID: o.ClientID, Asset: o.Asset}
}

// Equal compares two operations ignoring trailing decimal zeros: the same
// economic value can arrive as 1.50 or 1.5000 and must aggregate identically.
func (o Operation) Equal(other Operation) bool {
	return o.Broker == other.Broker &&
		o.Account == other.Account &&
		o.ClientID == other.ClientID &&
		o.Asset == other.Asset &&
		o.Amount.Equal(other.Amount) &&
		o.ReservedAmount.Equal(other.ReservedAmount) &&
		o.ReservedForSwapAmount.Equal(other.ReservedForSwapAmount)
}
