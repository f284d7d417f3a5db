package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound marks a query for a balance or record that does not exist.
var ErrNotFound = errors.New("not found")

// BalanceRecord is one persisted balance row plus the derived available
// value. Reads go straight to Postgres, not through the in-memory state,
// so results may trail the live ledger; AsOfSequence reports how far.
type BalanceRecord struct {
	Broker          string          `json:"broker"`
	Account         string          `json:"account"`
	ClientID        string          `json:"clientId"`
	Asset           string          `json:"asset"`
	Balance         decimal.Decimal `json:"balance"`
	Reserved        decimal.Decimal `json:"reserved"`
	ReservedForSwap decimal.Decimal `json:"reservedForSwap"`
	Available       decimal.Decimal `json:"available"`
	Version         int64           `json:"version"`
}

// BalancesResponse is a set of balance rows with a freshness marker.
type BalancesResponse struct {
	Balances     []BalanceRecord `json:"balances"`
	AsOfSequence int64           `json:"asOfSequence"`
}

// QueryService provides read-only access to the persisted ledger state.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// ClientBalances returns every asset balance of one client.
func (qs *QueryService) ClientBalances(ctx context.Context, clientID string) (*BalancesResponse, error) {
	asOf, err := qs.lastSequence(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT broker, account, client_id, asset, balance, reserved, reserved_for_swap, version
		FROM spot.balances
		WHERE client_id = $1
		ORDER BY asset`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query client balances: %w", err)
	}
	defer rows.Close()

	resp := &BalancesResponse{AsOfSequence: asOf}
	for rows.Next() {
		rec, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		resp.Balances = append(resp.Balances, rec)
	}
	return resp, rows.Err()
}

// ClientAssetBalance returns one client's balance in one asset.
func (qs *QueryService) ClientAssetBalance(ctx context.Context, clientID, asset string) (*BalanceRecord, error) {
	row := qs.db.QueryRowContext(ctx, `
		SELECT broker, account, client_id, asset, balance, reserved, reserved_for_swap, version
		FROM spot.balances
		WHERE client_id = $1 AND asset = $2`, clientID, asset)

	rec, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: balance %s/%s", ErrNotFound, clientID, asset)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsProcessed reports whether a message id has a dedup record.
func (qs *QueryService) IsProcessed(ctx context.Context, msgType, messageID string) (bool, error) {
	var exists bool
	err := qs.db.QueryRowContext(ctx, `
		SELECT true FROM spot.processed_messages
		WHERE type = $1 AND message_id = $2`, msgType, messageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed message: %w", err)
	}
	return exists, nil
}

// LastSequence returns the last durably persisted transaction sequence.
func (qs *QueryService) LastSequence(ctx context.Context) (int64, error) {
	return qs.lastSequence(ctx)
}

func (qs *QueryService) lastSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `SELECT sequence FROM spot.sequence_state WHERE id = 1`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query sequence: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBalance(row rowScanner) (BalanceRecord, error) {
	var (
		rec balanceStrings
		out BalanceRecord
	)
	if err := row.Scan(&out.Broker, &out.Account, &out.ClientID, &out.Asset,
		&rec.balance, &rec.reserved, &rec.reservedForSwap, &out.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, err
		}
		return out, fmt.Errorf("scan balance row: %w", err)
	}

	var err error
	if out.Balance, err = decimal.NewFromString(rec.balance); err != nil {
		return out, fmt.Errorf("parse balance: %w", err)
	}
	if out.Reserved, err = decimal.NewFromString(rec.reserved); err != nil {
		return out, fmt.Errorf("parse reserved: %w", err)
	}
	if out.ReservedForSwap, err = decimal.NewFromString(rec.reservedForSwap); err != nil {
		return out, fmt.Errorf("parse reserved_for_swap: %w", err)
	}

	total := out.Reserved.Add(out.ReservedForSwap)
	out.Available = out.Balance
	if total.IsPositive() {
		out.Available = out.Balance.Sub(total)
	}
	return out, nil
}

type balanceStrings struct {
	balance, reserved, reservedForSwap string
}
