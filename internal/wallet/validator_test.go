package wallet

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func validate(t *testing.T, old, new [3]string) error {
	t.Helper()
	return ValidateBalanceChange("client-1", "BTC",
		d(old[0]), d(old[1]), d(old[2]),
		d(new[0]), d(new[1]), d(new[2]))
}

func TestValidateBalanceChange_SimpleMovements(t *testing.T) {
	// credit
	assert.NoError(t, validate(t, [3]string{"10", "0", "0"}, [3]string{"15", "0", "0"}))
	// debit within funds
	assert.NoError(t, validate(t, [3]string{"10", "0", "0"}, [3]string{"3", "0", "0"}))
	// reserve within funds
	assert.NoError(t, validate(t, [3]string{"10", "0", "0"}, [3]string{"10", "4", "0"}))
	// release reservation
	assert.NoError(t, validate(t, [3]string{"10", "4", "0"}, [3]string{"10", "0", "0"}))
}

func TestValidateBalanceChange_NegativeBalance(t *testing.T) {
	err := validate(t, [3]string{"10", "0", "0"}, [3]string{"-1", "0", "0"})
	require.Error(t, err)

	var violation *BalanceViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "negative balance", violation.Reason)
	assert.Equal(t, "client-1", violation.ClientID)
	assert.Equal(t, "BTC", violation.Asset)
}

func TestValidateBalanceChange_NegativeBalanceCarveOut(t *testing.T) {
	// Already negative and recovering toward zero.
	assert.NoError(t, validate(t, [3]string{"-10", "0", "0"}, [3]string{"-5", "0", "0"}))

	// Already negative, reservations released in step with the deficit.
	assert.NoError(t, validate(t, [3]string{"-2", "5", "0"}, [3]string{"-4", "1", "0"}))

	// Was non-negative: any negative result is rejected regardless of legs.
	err := validate(t, [3]string{"0", "5", "0"}, [3]string{"-1", "5", "0"})
	require.Error(t, err)

	// Already negative but the deficit-vs-reservation gap widens.
	err = validate(t, [3]string{"-2", "0", "0"}, [3]string{"-4", "3", "0"})
	require.Error(t, err)
}

func TestValidateBalanceChange_NegativeReserved(t *testing.T) {
	err := validate(t, [3]string{"10", "5", "0"}, [3]string{"10", "-1", "0"})
	require.Error(t, err)

	var violation *BalanceViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "negative reserved balance", violation.Reason)

	// A negative reservation that does not shrink further is tolerated.
	assert.NoError(t, validate(t, [3]string{"10", "-2", "0"}, [3]string{"10", "-1", "0"}))
	assert.NoError(t, validate(t, [3]string{"10", "-2", "0"}, [3]string{"10", "-2", "0"}))
}

func TestValidateBalanceChange_NegativeReservedForSwap(t *testing.T) {
	err := validate(t, [3]string{"10", "0", "5"}, [3]string{"10", "0", "-1"})
	require.Error(t, err)

	var violation *BalanceViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "negative reserved for swap balance", violation.Reason)

	assert.NoError(t, validate(t, [3]string{"10", "0", "-3"}, [3]string{"10", "0", "-2"}))
}

func TestValidateBalanceChange_BalanceBelowReserved(t *testing.T) {
	// Debit under an open reservation widens the gap.
	err := validate(t, [3]string{"10", "5", "0"}, [3]string{"3", "5", "0"})
	require.Error(t, err)

	var violation *BalanceViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "balance lower than reserved", violation.Reason)

	// Already under-collateralized but the gap narrows: tolerated.
	assert.NoError(t, validate(t, [3]string{"3", "5", "0"}, [3]string{"3", "4", "0"}))

	// Both reservation legs count against the balance.
	err = validate(t, [3]string{"10", "3", "3"}, [3]string{"5", "3", "3"})
	require.Error(t, err)
}

func TestValidateBalanceChange_ScaleInsensitive(t *testing.T) {
	assert.NoError(t, validate(t, [3]string{"1.50", "0", "0"}, [3]string{"1.5000", "0", "0"}))
}
