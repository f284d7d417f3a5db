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

const opTransfer = "Transfer"

// TransferService moves funds between two clients as one atomic balance
// transaction. Handle must only be called from the single-writer
// processing loop.
type TransferService struct {
	holder      *core.BalancesHolder
	assets      *dictionary.AssetsHolder
	coordinator core.PersistenceCoordinator
	dedup       *core.MessageDeduplicator
	sequencer   *core.Sequencer
	publisher   *event.OutboundPublisher
	log         zerolog.Logger
	metrics     *observability.Metrics
}

func NewTransferService(
	holder *core.BalancesHolder,
	assets *dictionary.AssetsHolder,
	coordinator core.PersistenceCoordinator,
	dedup *core.MessageDeduplicator,
	sequencer *core.Sequencer,
	publisher *event.OutboundPublisher,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *TransferService {
	return &TransferService{
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

// Handle processes one transfer: both legs aggregate into the same
// transaction buffer, so either both balances move or neither does.
//
// An overdraft limit relaxes the source-side funds check and switches the
// core to force-apply, because pushing a non-negative balance negative is
// an invariant violation by definition. The limit itself is still
// enforced here.
func (s *TransferService) Handle(ctx context.Context, op TransferOperation) error {
	start := time.Now()

	if !op.Amount.IsPositive() {
		s.metrics.OperationsRejected.WithLabelValues(opTransfer, "invalid_amount").Inc()
		return ErrInvalidAmount
	}

	if s.dedup.IsDuplicate(opTransfer, op.MessageID) {
		s.metrics.OperationsRejected.WithLabelValues(opTransfer, "duplicate").Inc()
		return nil
	}

	proc := core.NewWalletOperationsProcessor(
		opTransfer, s.holder, s.assets, s.coordinator, s.log, s.metrics)

	available := proc.AvailableBalance(op.Broker, op.Account, op.FromClientID, op.Asset)
	mode := core.Strict
	if op.OverdraftLimit != nil {
		if available.Add(*op.OverdraftLimit).LessThan(op.Amount) {
			s.metrics.OperationsRejected.WithLabelValues(opTransfer, "low_balance").Inc()
			return ErrLowBalance
		}
		if available.LessThan(op.Amount) {
			mode = core.ForceApply
		}
	} else if available.LessThan(op.Amount) {
		s.metrics.OperationsRejected.WithLabelValues(opTransfer, "low_balance").Inc()
		return ErrLowBalance
	}

	_, err := proc.PreProcess([]wallet.Operation{
		{
			Broker:   op.Broker,
			Account:  op.Account,
			ClientID: op.FromClientID,
			Asset:    op.Asset,
			Amount:   op.Amount.Neg(),
		},
		{
			Broker:   op.Broker,
			Account:  op.Account,
			ClientID: op.ToClientID,
			Asset:    op.Asset,
			Amount:   op.Amount,
		},
	}, mode)
	if err != nil {
		s.metrics.OperationsRejected.WithLabelValues(opTransfer, "invariant").Inc()
		return err
	}

	seq := s.sequencer.Next()
	dedupRecord := &core.ProcessedMessage{
		Type:      opTransfer,
		MessageID: op.MessageID,
		Timestamp: op.Timestamp,
	}
	if !proc.PersistBalances(ctx, dedupRecord, nil, nil, &seq) {
		return ErrPersistFailed
	}

	proc.Apply()
	s.dedup.MarkProcessed(opTransfer, op.MessageID)

	s.metrics.OperationsApplied.WithLabelValues(opTransfer).Inc()
	s.metrics.OperationDuration.WithLabelValues(opTransfer).Observe(time.Since(start).Seconds())
	s.metrics.Sequence.Set(float64(seq))

	if updates := proc.ClientBalanceUpdates(); len(updates) > 0 {
		s.metrics.BalanceUpdates.Add(float64(len(updates)))
		s.publisher.Enqueue(event.NewEnvelope(event.TypeTransfer, op.MessageID, seq, updates))
	}

	s.log.Info().
		Str("messageId", op.MessageID).
		Str("from", op.FromClientID).
		Str("to", op.ToClientID).
		Str("asset", op.Asset).
		Str("amount", op.Amount.String()).
		Int64("sequence", seq).
		Msg("transfer applied")
	return nil
}
