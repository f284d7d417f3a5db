package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashOperation credits (positive amount) or debits (negative amount) a
// single client balance. MessageID is the external idempotency key.
type CashOperation struct {
	MessageID string
	Broker    string
	Account   string
	ClientID  string
	Asset     string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// TransferOperation moves an amount between two clients. When
// OverdraftLimit is set the source balance may go negative down to
// -OverdraftLimit; when nil the source must cover the full amount.
type TransferOperation struct {
	MessageID      string
	Broker         string
	Account        string
	FromClientID   string
	ToClientID     string
	Asset          string
	Amount         decimal.Decimal
	OverdraftLimit *decimal.Decimal
	Timestamp      time.Time
}
