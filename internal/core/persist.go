package core

import (
	"context"
	"time"

	"SpotLedger/internal/wallet"
)

// ProcessedMessage is the deduplication marker persisted in the same
// durable write as the balance delta. Its presence makes replays of the
// same external operation id short-circuit before a transaction buffer is
// ever constructed.
type ProcessedMessage struct {
	Type      string
	MessageID string
	Timestamp time.Time
}

// OrderBookDelta is an opaque order-book snapshot co-located with a balance
// transaction. The core never inspects the payload.
type OrderBookDelta struct {
	Asset    string
	IsBuy    bool
	Snapshot []byte
}

// PersistenceBatch is everything one transaction writes as a single
// atomic durable unit.
type PersistenceBatch struct {
	Wallets  []*wallet.Wallet
	Balances []*wallet.AssetBalance

	Dedup         *ProcessedMessage
	OrderBook     *OrderBookDelta
	StopOrderBook *OrderBookDelta
	Sequence      *int64
}

// PersistenceCoordinator writes a batch transactionally: all of it or none
// of it. Failure is reported as false, not an error: the caller treats the
// whole transaction as not having happened and must not commit the buffer.
type PersistenceCoordinator interface {
	Persist(ctx context.Context, batch PersistenceBatch) bool
}

// Sequencer hands out monotonically increasing transaction sequence
// numbers. Owned by the single-writer processing loop.
type Sequencer struct {
	next int64
}

// NewSequencer starts numbering after the last durably persisted sequence.
func NewSequencer(last int64) *Sequencer {
	return &Sequencer{next: last + 1}
}

func (s *Sequencer) Next() int64 {
	n := s.next
	s.next++
	return n
}

func (s *Sequencer) Current() int64 {
	return s.next - 1
}
