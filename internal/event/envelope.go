package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"SpotLedger/internal/wallet"
)

// Type discriminates the operation that produced a balance update batch.
type Type int32

const (
	TypeUnknown Type = iota
	TypeCashOperation
	TypeTransfer
	TypeReservedRecalculation
)

func (t Type) String() string {
	switch t {
	case TypeCashOperation:
		return "CashOperation"
	case TypeTransfer:
		return "Transfer"
	case TypeReservedRecalculation:
		return "ReservedRecalculation"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the type by name so the envelope body matches the
// publish subject suffix.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "CashOperation":
		*t = TypeCashOperation
	case "Transfer":
		*t = TypeTransfer
	case "ReservedRecalculation":
		*t = TypeReservedRecalculation
	default:
		*t = TypeUnknown
	}
	return nil
}

// BalanceUpdateEnvelope is the outbound notification for one committed
// balance transaction. Updates carry before/after values so consumers can
// apply deltas without a read-back.
type BalanceUpdateEnvelope struct {
	EventID   uuid.UUID                    `json:"eventId"`
	Type      Type                         `json:"type"`
	MessageID string                       `json:"messageId"`
	Sequence  int64                        `json:"sequence"`
	Timestamp time.Time                    `json:"timestamp"`
	Updates   []wallet.ClientBalanceUpdate `json:"updates"`
}

// NewEnvelope stamps a fresh event id and wall-clock timestamp.
func NewEnvelope(t Type, messageID string, sequence int64, updates []wallet.ClientBalanceUpdate) BalanceUpdateEnvelope {
	return BalanceUpdateEnvelope{
		EventID:   uuid.New(),
		Type:      t,
		MessageID: messageID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Updates:   updates,
	}
}
