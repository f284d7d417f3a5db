package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresDedupChecker is the durable second tier behind the in-memory
// dedup LRU. It is only consulted on an LRU miss.
type PostgresDedupChecker struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresDedupChecker(db *sql.DB, timeout time.Duration) *PostgresDedupChecker {
	return &PostgresDedupChecker{db: db, timeout: timeout}
}

// IsProcessed reports whether a dedup record for the message exists.
func (c *PostgresDedupChecker) IsProcessed(msgType, messageID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var exists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT true FROM spot.processed_messages
		WHERE type = $1 AND message_id = $2`,
		msgType, messageID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed message: %w", err)
	}
	return exists, nil
}
