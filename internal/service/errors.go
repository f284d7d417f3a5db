package service

import "errors"

var (
	// ErrLowBalance rejects a debit or transfer the source balance cannot
	// cover.
	ErrLowBalance = errors.New("low balance")

	// ErrInvalidAmount rejects a non-positive transfer amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPersistFailed means the durable write did not happen; in-memory
	// state was left untouched and the message will be redelivered.
	ErrPersistFailed = errors.New("persist failed")
)
