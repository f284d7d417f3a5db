package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferOp(messageID, from, to, asset, amount string) TransferOperation {
	return TransferOperation{
		MessageID:    messageID,
		Broker:       "broker-1",
		Account:      "account-1",
		FromClientID: from,
		ToClientID:   to,
		Asset:        asset,
		Amount:       d(amount),
		Timestamp:    time.Unix(1700000000, 0),
	}
}

func TestTransfer_MovesFundsAtomically(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "0", 1))

	err := env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "30"))
	require.NoError(t, err)

	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("70")))
	assert.True(t, env.holder.AssetBalance("bob", "USD").Balance.Equal(d("30")))

	// One durable write covers both legs.
	require.Len(t, env.coordinator.batches, 1)
	assert.Len(t, env.coordinator.batches[0].Balances, 2)
}

func TestTransfer_RejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "0", 1))

	err := env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "0"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = env.transfer.Handle(context.Background(), transferOp("msg-2", "alice", "bob", "USD", "-5"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransfer_RejectsInsufficientFunds(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "10", "0", 1))

	err := env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "15"))
	require.ErrorIs(t, err, ErrLowBalance)

	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("10")))
	assert.Nil(t, env.holder.Wallet("bob"))
}

func TestTransfer_ReservedFundsAreNotTransferable(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "95", 1))

	err := env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "10"))
	require.ErrorIs(t, err, ErrLowBalance)
}

func TestTransfer_OverdraftWithinLimit(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "10", "0", 1))

	op := transferOp("msg-1", "alice", "bob", "USD", "15")
	limit := decimal.NewFromInt(10)
	op.OverdraftLimit = &limit

	err := env.transfer.Handle(context.Background(), op)
	require.NoError(t, err)

	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("-5")))
	assert.True(t, env.holder.AssetBalance("bob", "USD").Balance.Equal(d("15")))
}

func TestTransfer_OverdraftBeyondLimitRejected(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "10", "0", 1))

	op := transferOp("msg-1", "alice", "bob", "USD", "25")
	limit := decimal.NewFromInt(10)
	op.OverdraftLimit = &limit

	err := env.transfer.Handle(context.Background(), op)
	require.ErrorIs(t, err, ErrLowBalance)
	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("10")))
}

func TestTransfer_OverdraftNotNeededStaysStrict(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "0", 1))

	op := transferOp("msg-1", "alice", "bob", "USD", "30")
	limit := decimal.NewFromInt(10)
	op.OverdraftLimit = &limit

	require.NoError(t, env.transfer.Handle(context.Background(), op))
	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("70")))
}

func TestTransfer_DuplicateAcknowledgedWithoutEffect(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "0", 1))

	require.NoError(t, env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "30")))
	require.NoError(t, env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "30")))

	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("70")))
	assert.Len(t, env.coordinator.batches, 1)
}

func TestTransfer_PersistFailure(t *testing.T) {
	env := newTestEnv(t, seedBalance("alice", "USD", "100", "0", 1))
	env.coordinator.fail = true

	err := env.transfer.Handle(context.Background(), transferOp("msg-1", "alice", "bob", "USD", "30"))
	require.ErrorIs(t, err, ErrPersistFailed)

	assert.True(t, env.holder.AssetBalance("alice", "USD").Balance.Equal(d("100")))
	assert.Nil(t, env.holder.Wallet("bob"))
}
