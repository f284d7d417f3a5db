package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpotLedger/internal/core"
)

func recalcOp(messageID string, reservations ...core.OrderReservation) ReservedRecalculation {
	return ReservedRecalculation{
		MessageID:    messageID,
		Timestamp:    time.Unix(1700000000, 0),
		Reservations: reservations,
	}
}

func TestReservedRecalculation_CorrectsAndMarksProcessed(t *testing.T) {
	env := newTestEnv(t, seedBalance("client-1", "BTC", "10", "1", 1))

	op := recalcOp("recalc-1", core.OrderReservation{
		Broker:   "broker-1",
		Account:  "account-1",
		ClientID: "client-1",
		Asset:    "BTC",
		Volume:   d("3"),
	})
	require.NoError(t, env.recalc.Handle(context.Background(), op))

	assert.True(t, env.holder.AssetBalance("client-1", "BTC").Reserved.Equal(d("3")))
	require.Len(t, env.coordinator.batches, 1)
	require.NotNil(t, env.coordinator.batches[0].Dedup)
	assert.Equal(t, "recalc-1", env.coordinator.batches[0].Dedup.MessageID)
	require.NotNil(t, env.coordinator.batches[0].Sequence)
	assert.Equal(t, int64(1), *env.coordinator.batches[0].Sequence)
	assert.Equal(t, int64(1), env.sequencer.Current())

	// Replay is a no-op.
	require.NoError(t, env.recalc.Handle(context.Background(), op))
	assert.Len(t, env.coordinator.batches, 1)
}

func TestReservedRecalculation_ConsistentStateSucceedsQuietly(t *testing.T) {
	env := newTestEnv(t, seedBalance("client-1", "BTC", "10", "2", 1))

	op := recalcOp("recalc-1", core.OrderReservation{
		Broker:   "broker-1",
		Account:  "account-1",
		ClientID: "client-1",
		Asset:    "BTC",
		Volume:   d("2"),
	})
	require.NoError(t, env.recalc.Handle(context.Background(), op))
	assert.Empty(t, env.coordinator.batches)
	assert.Zero(t, env.sequencer.Current())
}
