package wallet

import "github.com/shopspring/decimal"

// ClientBalanceUpdate is the before/after snapshot emitted for one
// (client, asset) pair that changed value within a committed transaction.
// Reserved fields carry the total reservation (orders + swap).
type ClientBalanceUpdate struct {
	ClientID    string          `json:"client_id"`
	Asset       string          `json:"asset"`
	OldBalance  decimal.Decimal `json:"old_balance"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	OldReserved decimal.Decimal `json:"old_reserved"`
	NewReserved decimal.Decimal `json:"new_reserved"`
	Version     int64           `json:"version"`
}

// IsNoop reports whether the update carries no observable change.
// Comparison ignores scale: 0.50 -> 0.5000 is a no-op.
func (u *ClientBalanceUpdate) IsNoop() bool {
	return u.OldBalance.Equal(u.NewBalance) && u.OldReserved.Equal(u.NewReserved)
}
