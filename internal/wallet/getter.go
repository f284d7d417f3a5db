package wallet

import "github.com/shopspring/decimal"

// BalanceGetter is the read-side contract implemented by both the live
// balances holder and any in-flight transaction buffer, so validation code
// written against "the balance" transparently sees staged-but-uncommitted
// changes within the same transaction.
type BalanceGetter interface {
	AvailableBalance(broker, account, clientID, asset string) decimal.Decimal
	AvailableReservedBalance(broker, account, clientID, asset string) decimal.Decimal
	ReservedForOrdersBalance(broker, account, clientID, asset string) decimal.Decimal
	ReservedTotalBalance(broker, account, clientID, asset string) decimal.Decimal
}
