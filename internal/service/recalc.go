package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"SpotLedger/internal/core"
	"SpotLedger/internal/event"
	"SpotLedger/internal/observability"
)

const opReservedRecalculation = "ReservedRecalculation"

// ReservedRecalculation carries the authoritative open-order reservation
// set. The ledger rebuilds every reserved-for-orders leg from it.
type ReservedRecalculation struct {
	MessageID    string
	Timestamp    time.Time
	Reservations []core.OrderReservation
}

// ReservedRecalculationService runs the maintenance-path reservation
// rebuild. Handle must only be called from the single-writer processing
// loop.
type ReservedRecalculationService struct {
	recalculator *core.ReservedVolumesRecalculator
	dedup        *core.MessageDeduplicator
	publisher    *event.OutboundPublisher
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewReservedRecalculationService(
	recalculator *core.ReservedVolumesRecalculator,
	dedup *core.MessageDeduplicator,
	publisher *event.OutboundPublisher,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *ReservedRecalculationService {
	return &ReservedRecalculationService{
		recalculator: recalculator,
		dedup:        dedup,
		publisher:    publisher,
		log:          log,
		metrics:      metrics,
	}
}

// Handle rebuilds reserved volumes from the message's reservation set.
// A no-op rebuild is still a success, it just writes and publishes nothing.
func (s *ReservedRecalculationService) Handle(ctx context.Context, op ReservedRecalculation) error {
	start := time.Now()

	if s.dedup.IsDuplicate(opReservedRecalculation, op.MessageID) {
		s.metrics.OperationsRejected.WithLabelValues(opReservedRecalculation, "duplicate").Inc()
		return nil
	}

	dedupRecord := &core.ProcessedMessage{
		Type:      opReservedRecalculation,
		MessageID: op.MessageID,
		Timestamp: op.Timestamp,
	}
	updates, seq, err := s.recalculator.Recalculate(ctx, op.Reservations, dedupRecord)
	if err != nil {
		return err
	}

	s.dedup.MarkProcessed(opReservedRecalculation, op.MessageID)
	s.metrics.OperationsApplied.WithLabelValues(opReservedRecalculation).Inc()
	s.metrics.OperationDuration.WithLabelValues(opReservedRecalculation).Observe(time.Since(start).Seconds())

	if len(updates) > 0 {
		s.metrics.BalanceUpdates.Add(float64(len(updates)))
		s.publisher.Enqueue(event.NewEnvelope(event.TypeReservedRecalculation, op.MessageID, seq, updates))
	}
	return nil
}
