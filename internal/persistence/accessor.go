package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/wallet"
)

// PostgresAccessor implements the startup load path: wallets, the asset
// dictionary, trusted clients, the last persisted sequence and the recent
// dedup keys all come from the same database the coordinator writes to.
type PostgresAccessor struct {
	db *sql.DB
}

func NewPostgresAccessor(db *sql.DB) *PostgresAccessor {
	return &PostgresAccessor{db: db}
}

// LoadWallets reads every balance row and groups them into wallets keyed
// by client id.
func (a *PostgresAccessor) LoadWallets(ctx context.Context) (map[string]*wallet.Wallet, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT broker, account, client_id, asset, balance, reserved, reserved_for_swap, version
		FROM spot.balances`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	wallets := make(map[string]*wallet.Wallet)
	for rows.Next() {
		var (
			broker, account, clientID, asset   string
			balance, reserved, reservedForSwap string
			version                            int64
		)
		if err := rows.Scan(&broker, &account, &clientID, &asset, &balance, &reserved, &reservedForSwap, &version); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}

		ab := &wallet.AssetBalance{
			Broker:   broker,
			Account:  account,
			ClientID: clientID,
			Asset:    asset,
			Version:  version,
		}
		if ab.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse balance for %s/%s: %w", clientID, asset, err)
		}
		if ab.Reserved, err = decimal.NewFromString(reserved); err != nil {
			return nil, fmt.Errorf("parse reserved for %s/%s: %w", clientID, asset, err)
		}
		if ab.ReservedForSwap, err = decimal.NewFromString(reservedForSwap); err != nil {
			return nil, fmt.Errorf("parse reserved_for_swap for %s/%s: %w", clientID, asset, err)
		}

		w, ok := wallets[clientID]
		if !ok {
			w = wallet.NewWallet(broker, account, clientID)
			wallets[clientID] = w
		}
		w.SetBalance(ab)
	}
	return wallets, rows.Err()
}

// LoadAssets reads the asset dictionary.
func (a *PostgresAccessor) LoadAssets(ctx context.Context) ([]dictionary.Asset, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT symbol, accuracy FROM spot.assets`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []dictionary.Asset
	for rows.Next() {
		var asset dictionary.Asset
		if err := rows.Scan(&asset.Symbol, &asset.Accuracy); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// LoadTrustedClients reads the trusted-client policy set.
func (a *PostgresAccessor) LoadTrustedClients(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT client_id FROM spot.trusted_clients`)
	if err != nil {
		return nil, fmt.Errorf("query trusted clients: %w", err)
	}
	defer rows.Close()

	var clients []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trusted client row: %w", err)
		}
		clients = append(clients, id)
	}
	return clients, rows.Err()
}

// LoadSequence returns the last durably persisted transaction sequence,
// zero when the ledger has never written one.
func (a *PostgresAccessor) LoadSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := a.db.QueryRowContext(ctx, `SELECT sequence FROM spot.sequence_state WHERE id = 1`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query sequence: %w", err)
	}
	return seq, nil
}

// LoadRecentProcessedKeys returns the newest processed-message keys in
// composite "type:message_id" form, for warming the dedup LRU at startup.
func (a *PostgresAccessor) LoadRecentProcessedKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT type, message_id FROM spot.processed_messages
		ORDER BY processed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query processed messages: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var msgType, messageID string
		if err := rows.Scan(&msgType, &messageID); err != nil {
			return nil, fmt.Errorf("scan processed message row: %w", err)
		}
		keys = append(keys, msgType+":"+messageID)
	}
	// Oldest-first so the LRU evicts in insertion order.
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys, rows.Err()
}
