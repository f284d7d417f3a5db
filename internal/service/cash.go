package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"SpotLedger/internal/core"
	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/event"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/wallet"
)

const opCashOperation = "CashOperation"

// CashOperationService applies external cash in/out messages to the
// ledger. Handle must only be called from the single-writer processing
// loop.
type CashOperationService struct {
	holder      *core.BalancesHolder
	assets      *dictionary.AssetsHolder
	coordinator core.PersistenceCoordinator
	dedup       *core.MessageDeduplicator
	sequencer   *core.Sequencer
	publisher   *event.OutboundPublisher
	log         zerolog.Logger
	metrics     *observability.Metrics
}

func NewCashOperationService(
	holder *core.BalancesHolder,
	assets *dictionary.AssetsHolder,
	coordinator core.PersistenceCoordinator,
	dedup *core.MessageDeduplicator,
	sequencer *core.Sequencer,
	publisher *event.OutboundPublisher,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *CashOperationService {
	return &CashOperationService{
		holder:      holder,
		assets:      assets,
		coordinator: coordinator,
		dedup:       dedup,
		sequencer:   sequencer,
		publisher:   publisher,
		log:         log,
		metrics:     metrics,
	}
}

// Handle processes one cash operation end to end: dedup check, balance
// check for debits, validate, persist, commit, publish. A duplicate is
// acknowledged as success without touching any state.
func (s *CashOperationService) Handle(ctx context.Context, op CashOperation) error {
	start := time.Now()

	if s.dedup.IsDuplicate(opCashOperation, op.MessageID) {
		s.metrics.OperationsRejected.WithLabelValues(opCashOperation, "duplicate").Inc()
		return nil
	}

	proc := core.NewWalletOperationsProcessor(
		opCashOperation, s.holder, s.assets, s.coordinator, s.log, s.metrics)

	if op.Amount.IsNegative() {
		available := proc.AvailableBalance(op.Broker, op.Account, op.ClientID, op.Asset)
		if available.LessThan(op.Amount.Neg()) {
			s.metrics.OperationsRejected.WithLabelValues(opCashOperation, "low_balance").Inc()
			s.log.Warn().
				Str("messageId", op.MessageID).
				Str("clientId", op.ClientID).
				Str("asset", op.Asset).
				Str("amount", op.Amount.String()).
				Str("available", available.String()).
				Msg("cash out rejected")
			return ErrLowBalance
		}
	}

	_, err := proc.PreProcess([]wallet.Operation{{
		Broker:   op.Broker,
		Account:  op.Account,
		ClientID: op.ClientID,
		Asset:    op.Asset,
		Amount:   op.Amount,
	}}, core.Strict)
	if err != nil {
		s.metrics.OperationsRejected.WithLabelValues(opCashOperation, "invariant").Inc()
		return err
	}

	seq := s.sequencer.Next()
	dedupRecord := &core.ProcessedMessage{
		Type:      opCashOperation,
		MessageID: op.MessageID,
		Timestamp: op.Timestamp,
	}
	if !proc.PersistBalances(ctx, dedupRecord, nil, nil, &seq) {
		return ErrPersistFailed
	}

	proc.Apply()
	s.dedup.MarkProcessed(opCashOperation, op.MessageID)

	s.metrics.OperationsApplied.WithLabelValues(opCashOperation).Inc()
	s.metrics.OperationDuration.WithLabelValues(opCashOperation).Observe(time.Since(start).Seconds())
	s.metrics.Sequence.Set(float64(seq))

	if updates := proc.ClientBalanceUpdates(); len(updates) > 0 {
		s.metrics.BalanceUpdates.Add(float64(len(updates)))
		s.publisher.Enqueue(event.NewEnvelope(event.TypeCashOperation, op.MessageID, seq, updates))
	}

	s.log.Info().
		Str("messageId", op.MessageID).
		Str("clientId", op.ClientID).
		Str("asset", op.Asset).
		Str("amount", op.Amount.String()).
		Int64("sequence", seq).
		Msg("cash operation applied")
	return nil
}
