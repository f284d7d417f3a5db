package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SpotLedger/internal/wallet"
)

// WalletsAccessor loads the authoritative wallet set from durable storage.
type WalletsAccessor interface {
	LoadWallets(ctx context.Context) (map[string]*wallet.Wallet, error)
}

// TrustedClientPolicy answers whether a client is policy-flagged as trusted.
type TrustedClientPolicy interface {
	IsTrustedClient(clientID string) bool
}

// BalancesHolder is the single process-wide authoritative view of all
// wallets: refreshed from the accessor at startup, read by everyone,
// mutated only via committed transaction buffers.
//
// The single writer installs whole Wallet objects per client; the RWMutex
// makes concurrent lookups from read-side services safe against that.
type BalancesHolder struct {
	mu       sync.RWMutex
	wallets  map[string]*wallet.Wallet
	accessor WalletsAccessor
	policy   TrustedClientPolicy
	log      zerolog.Logger
}

func NewBalancesHolder(accessor WalletsAccessor, policy TrustedClientPolicy, log zerolog.Logger) *BalancesHolder {
	return &BalancesHolder{
		wallets:  make(map[string]*wallet.Wallet),
		accessor: accessor,
		policy:   policy,
		log:      log,
	}
}

// Load populates the wallet map from the durable accessor. Called at
// startup and after bulk administrative recalculation.
func (h *BalancesHolder) Load(ctx context.Context) error {
	wallets, err := h.accessor.LoadWallets(ctx)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}

	h.mu.Lock()
	h.wallets = wallets
	h.mu.Unlock()

	h.log.Info().Int("wallets", len(wallets)).Msg("balances loaded")
	return nil
}

// Wallet returns the live wallet for a client, or nil. Callers must not
// mutate the result; transaction buffers deep-copy it instead.
func (h *BalancesHolder) Wallet(clientID string) *wallet.Wallet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wallets[clientID]
}

// AssetBalance returns a value copy of the live record for one
// (client, asset) pair, or nil if the pair was never touched.
func (h *BalancesHolder) AssetBalance(clientID, asset string) *wallet.AssetBalance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w := h.wallets[clientID]
	if w == nil {
		return nil
	}
	b := w.Balance(asset)
	if b == nil {
		return nil
	}
	return b.Copy()
}

// CommitWallets merges changed wallets into the live map, replacing whole
// wallets by client id. Called exclusively from a transaction buffer's
// commit step, after the durable write succeeded.
func (h *BalancesHolder) CommitWallets(changed []*wallet.Wallet) {
	h.mu.Lock()
	for _, w := range changed {
		h.wallets[w.ClientID] = w
	}
	h.mu.Unlock()
}

// ForEachWallet invokes fn for every live wallet under the read lock.
// Used by administrative sweeps; fn must not mutate.
func (h *BalancesHolder) ForEachWallet(fn func(*wallet.Wallet)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, w := range h.wallets {
		fn(w)
	}
}

// IsTrustedClient delegates to the settings policy collaborator.
func (h *BalancesHolder) IsTrustedClient(clientID string) bool {
	return h.policy.IsTrustedClient(clientID)
}

// --- Balance Getter contract, served from live state ---

func (h *BalancesHolder) AvailableBalance(broker, account, clientID, asset string) decimal.Decimal {
	if b := h.AssetBalance(clientID, asset); b != nil {
		return b.Available()
	}
	return decimal.Zero
}

func (h *BalancesHolder) AvailableReservedBalance(broker, account, clientID, asset string) decimal.Decimal {
	if b := h.AssetBalance(clientID, asset); b != nil {
		return b.AvailableReserved()
	}
	return decimal.Zero
}

func (h *BalancesHolder) ReservedForOrdersBalance(broker, account, clientID, asset string) decimal.Decimal {
	if b := h.AssetBalance(clientID, asset); b != nil {
		return b.Reserved
	}
	return decimal.Zero
}

func (h *BalancesHolder) ReservedTotalBalance(broker, account, clientID, asset string) decimal.Decimal {
	if b := h.AssetBalance(clientID, asset); b != nil {
		return b.TotalReserved()
	}
	return decimal.Zero
}

var _ wallet.BalanceGetter = (*BalancesHolder)(nil)
