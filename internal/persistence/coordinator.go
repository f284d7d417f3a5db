package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"SpotLedger/internal/core"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/wallet"
)

// PostgresCoordinator writes a PersistenceBatch as one database
// transaction. A failed write returns false and the in-memory state is
// expected to stay at its pre-transaction values.
type PostgresCoordinator struct {
	db      *sql.DB
	log     zerolog.Logger
	metrics *observability.Metrics
}

var _ core.PersistenceCoordinator = (*PostgresCoordinator)(nil)

func NewPostgresCoordinator(db *sql.DB, log zerolog.Logger, metrics *observability.Metrics) *PostgresCoordinator {
	return &PostgresCoordinator{db: db, log: log, metrics: metrics}
}

// Persist writes all parts of the batch atomically: all of it or none of it.
func (c *PostgresCoordinator) Persist(ctx context.Context, batch core.PersistenceBatch) bool {
	start := time.Now()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.fail("begin", err)
		return false
	}
	defer tx.Rollback()

	if err := c.upsertBalances(ctx, tx, batch.Balances); err != nil {
		c.fail("balances", err)
		return false
	}
	if batch.Dedup != nil {
		if err := c.insertDedup(ctx, tx, batch.Dedup); err != nil {
			c.fail("dedup", err)
			return false
		}
	}
	if batch.OrderBook != nil {
		if err := c.upsertOrderBook(ctx, tx, "spot.orderbook_snapshots", batch.OrderBook); err != nil {
			c.fail("orderbook", err)
			return false
		}
	}
	if batch.StopOrderBook != nil {
		if err := c.upsertOrderBook(ctx, tx, "spot.stop_orderbook_snapshots", batch.StopOrderBook); err != nil {
			c.fail("stop_orderbook", err)
			return false
		}
	}
	if batch.Sequence != nil {
		if err := c.upsertSequence(ctx, tx, *batch.Sequence); err != nil {
			c.fail("sequence", err)
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		c.fail("commit", err)
		return false
	}

	c.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	c.metrics.PersistBalances.Add(float64(len(batch.Balances)))
	if batch.Sequence != nil {
		c.metrics.PersistLastSequence.Set(float64(*batch.Sequence))
	}
	return true
}

func (c *PostgresCoordinator) fail(stage string, err error) {
	c.metrics.PersistErrors.WithLabelValues(stage).Inc()
	c.log.Error().Err(err).Str("stage", stage).Msg("persist failed")
}

// upsertBalances writes the changed balance rows with a multi-row
// INSERT ... ON CONFLICT upsert.
func (c *PostgresCoordinator) upsertBalances(ctx context.Context, tx *sql.Tx, balances []*wallet.AssetBalance) error {
	if len(balances) == 0 {
		return nil
	}

	query := `INSERT INTO spot.balances
		(broker, account, client_id, asset, balance, reserved, reserved_for_swap, version)
		VALUES `

	values := make([]string, 0, len(balances))
	args := make([]interface{}, 0, len(balances)*8)

	for i, b := range balances {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			b.Broker, b.Account, b.ClientID, b.Asset,
			b.Balance.String(), b.Reserved.String(), b.ReservedForSwap.String(), b.Version,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (client_id, asset) DO UPDATE SET
		broker = EXCLUDED.broker,
		account = EXCLUDED.account,
		balance = EXCLUDED.balance,
		reserved = EXCLUDED.reserved,
		reserved_for_swap = EXCLUDED.reserved_for_swap,
		version = EXCLUDED.version`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (c *PostgresCoordinator) insertDedup(ctx context.Context, tx *sql.Tx, msg *core.ProcessedMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO spot.processed_messages (type, message_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (type, message_id) DO NOTHING`,
		msg.Type, msg.MessageID, msg.Timestamp)
	return err
}

func (c *PostgresCoordinator) upsertOrderBook(ctx context.Context, tx *sql.Tx, table string, delta *core.OrderBookDelta) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (asset, is_buy, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (asset, is_buy) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = now()`, table),
		delta.Asset, delta.IsBuy, delta.Snapshot)
	return err
}

func (c *PostgresCoordinator) upsertSequence(ctx context.Context, tx *sql.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO spot.sequence_state (id, sequence)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET sequence = EXCLUDED.sequence`,
		seq)
	return err
}
