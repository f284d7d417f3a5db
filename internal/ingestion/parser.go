package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/core"
	"SpotLedger/internal/service"
)

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Amounts travel
// as strings to keep decimal precision exact.

type cashOperationJSON struct {
	MessageID   string `json:"message_id"`
	Broker      string `json:"broker"`
	Account     string `json:"account"`
	ClientID    string `json:"client_id"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParseCashOperation converts raw JSON bytes into a cash operation.
func ParseCashOperation(data []byte) (service.CashOperation, error) {
	var j cashOperationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return service.CashOperation{}, fmt.Errorf("parse CashOperation: %w", err)
	}
	if j.MessageID == "" {
		return service.CashOperation{}, fmt.Errorf("parse CashOperation: missing message_id")
	}
	amount, err := decimal.NewFromString(j.Amount)
	if err != nil {
		return service.CashOperation{}, fmt.Errorf("parse amount: %w", err)
	}
	return service.CashOperation{
		MessageID: j.MessageID,
		Broker:    j.Broker,
		Account:   j.Account,
		ClientID:  j.ClientID,
		Asset:     j.Asset,
		Amount:    amount,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type transferJSON struct {
	MessageID      string  `json:"message_id"`
	Broker         string  `json:"broker"`
	Account        string  `json:"account"`
	FromClientID   string  `json:"from_client_id"`
	ToClientID     string  `json:"to_client_id"`
	Asset          string  `json:"asset"`
	Amount         string  `json:"amount"`
	OverdraftLimit *string `json:"overdraft_limit,omitempty"`
	TimestampUs    int64   `json:"timestamp_us"`
}

// ParseTransfer converts raw JSON bytes into a transfer operation.
func ParseTransfer(data []byte) (service.TransferOperation, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return service.TransferOperation{}, fmt.Errorf("parse Transfer: %w", err)
	}
	if j.MessageID == "" {
		return service.TransferOperation{}, fmt.Errorf("parse Transfer: missing message_id")
	}
	amount, err := decimal.NewFromString(j.Amount)
	if err != nil {
		return service.TransferOperation{}, fmt.Errorf("parse amount: %w", err)
	}
	op := service.TransferOperation{
		MessageID:    j.MessageID,
		Broker:       j.Broker,
		Account:      j.Account,
		FromClientID: j.FromClientID,
		ToClientID:   j.ToClientID,
		Asset:        j.Asset,
		Amount:       amount,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}
	if j.OverdraftLimit != nil {
		limit, err := decimal.NewFromString(*j.OverdraftLimit)
		if err != nil {
			return service.TransferOperation{}, fmt.Errorf("parse overdraft_limit: %w", err)
		}
		op.OverdraftLimit = &limit
	}
	return op, nil
}

type reservationJSON struct {
	Broker   string `json:"broker"`
	Account  string `json:"account"`
	ClientID string `json:"client_id"`
	Asset    string `json:"asset"`
	Volume   string `json:"volume"`
}

type recalculationJSON struct {
	MessageID    string            `json:"message_id"`
	Reservations []reservationJSON `json:"reservations"`
	TimestampUs  int64             `json:"timestamp_us"`
}

// ParseReservedRecalculation converts raw JSON bytes into a reservation
// rebuild request.
func ParseReservedRecalculation(data []byte) (service.ReservedRecalculation, error) {
	var j recalculationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return service.ReservedRecalculation{}, fmt.Errorf("parse ReservedRecalculation: %w", err)
	}
	if j.MessageID == "" {
		return service.ReservedRecalculation{}, fmt.Errorf("parse ReservedRecalculation: missing message_id")
	}
	op := service.ReservedRecalculation{
		MessageID: j.MessageID,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}
	for i, r := range j.Reservations {
		volume, err := decimal.NewFromString(r.Volume)
		if err != nil {
			return service.ReservedRecalculation{}, fmt.Errorf("parse reservation %d volume: %w", i, err)
		}
		op.Reservations = append(op.Reservations, core.OrderReservation{
			Broker:   r.Broker,
			Account:  r.Account,
			ClientID: r.ClientID,
			Asset:    r.Asset,
			Volume:   volume,
		})
	}
	return op, nil
}
