package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"SpotLedger/internal/observability"
)

// OutboundPublisher publishes balance update envelopes to NATS for
// downstream consumers. Envelopes are enqueued by the processing loop
// after persistence is confirmed; the publish loop drains the channel so
// a slow broker never blocks the single writer.
type OutboundPublisher struct {
	js      jetstream.JetStream
	queue   chan BalanceUpdateEnvelope
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewOutboundPublisher(js jetstream.JetStream, queueSize int, log zerolog.Logger, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:      js,
		queue:   make(chan BalanceUpdateEnvelope, queueSize),
		log:     log,
		metrics: metrics,
	}
}

// Enqueue hands an envelope to the publish loop without blocking. When the
// queue is full the envelope is dropped and counted; consumers can recover
// from the balances table.
func (p *OutboundPublisher) Enqueue(env BalanceUpdateEnvelope) {
	select {
	case p.queue <- env:
	default:
		p.metrics.PublishDrops.Inc()
		p.log.Warn().
			Str("messageId", env.MessageID).
			Int64("sequence", env.Sequence).
			Msg("publish queue full, envelope dropped")
	}
}

// Run drains the queue until the context is cancelled.
func (p *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-p.queue:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				// Non-fatal: the balances table is the source of truth.
				p.log.Warn().Err(err).
					Str("messageId", env.MessageID).
					Int64("sequence", env.Sequence).
					Msg("outbound publish failed")
				continue
			}
			p.metrics.EventsPublished.Inc()
		}
	}
}

func (p *OutboundPublisher) publish(ctx context.Context, env BalanceUpdateEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("spot.ledger.balances.%s", env.Type)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound balance update stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SPOT_LEDGER_BALANCES",
		Subjects:  []string{"spot.ledger.balances.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
