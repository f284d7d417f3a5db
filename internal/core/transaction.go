package core

import (
	"github.com/shopspring/decimal"

	"SpotLedger/internal/wallet"
)

// TransactionBalancesHolder is the copy-on-write staging area for one
// logical transaction. Working copies are deep copies of the holder's live
// wallets; nothing in the live map is touched until Commit. Discarding the
// buffer without committing leaves the holder unchanged.
//
// Constructed fresh per transaction, discarded after the net-change list
// is extracted. Not safe for concurrent use; the single-writer loop owns it.
type TransactionBalancesHolder struct {
	holder *BalancesHolder

	changedWallets  map[string]*wallet.Wallet                  // client -> deep-copied wallet
	changedBalances map[string]map[string]*wallet.AssetBalance // client -> asset -> working copy
}

func NewTransaction(holder *BalancesHolder) *TransactionBalancesHolder {
	return &TransactionBalancesHolder{
		holder:          holder,
		changedWallets:  make(map[string]*wallet.Wallet),
		changedBalances: make(map[string]map[string]*wallet.AssetBalance),
	}
}

// WorkingBalance returns the transaction-local mutable wallet and balance
// for a (client, asset) pair, deep-copying from the live holder on first
// touch and creating zero records for new clients or assets.
func (t *TransactionBalancesHolder) WorkingBalance(broker, account, clientID, asset string) (*wallet.Wallet, *wallet.AssetBalance) {
	w, ok := t.changedWallets[clientID]
	if !ok {
		if live := t.holder.Wallet(clientID); live != nil {
			w = live.Copy()
		} else {
			w = wallet.NewWallet(broker, account, clientID)
		}
		t.changedWallets[clientID] = w
	}

	b := w.Balance(asset)
	if b == nil {
		b = wallet.NewAssetBalance(broker, account, clientID, asset)
		w.SetBalance(b)
	}

	byAsset, ok := t.changedBalances[clientID]
	if !ok {
		byAsset = make(map[string]*wallet.AssetBalance)
		t.changedBalances[clientID] = byAsset
	}
	byAsset[asset] = b

	return w, b
}

// EffectiveBalance returns a read-only value for a (client, asset) pair:
// the transaction's working copy if one exists, else the live value, else a
// zero placeholder. Pure reads never materialize a working copy.
func (t *TransactionBalancesHolder) EffectiveBalance(broker, account, clientID, asset string) wallet.AssetBalance {
	if byAsset, ok := t.changedBalances[clientID]; ok {
		if b, ok := byAsset[asset]; ok {
			return *b
		}
	}
	if b := t.holder.AssetBalance(clientID, asset); b != nil {
		return *b
	}
	return *wallet.NewAssetBalance(broker, account, clientID, asset)
}

// SetBalance overwrites the working balance directly, bypassing delta
// aggregation. Used by administrative recalculation flows only.
func (t *TransactionBalancesHolder) SetBalance(broker, account, clientID, asset string, balance decimal.Decimal) {
	_, b := t.WorkingBalance(broker, account, clientID, asset)
	b.Balance = balance
	b.Version++
}

// SetReserved overwrites the working order reservation directly.
// Used by administrative recalculation flows only.
func (t *TransactionBalancesHolder) SetReserved(broker, account, clientID, asset string, reserved decimal.Decimal) {
	_, b := t.WorkingBalance(broker, account, clientID, asset)
	b.Reserved = reserved
	b.Version++
}

// NetChanges returns every touched wallet and balance for handing to the
// persistence coordinator.
func (t *TransactionBalancesHolder) NetChanges() ([]*wallet.Wallet, []*wallet.AssetBalance) {
	wallets := make([]*wallet.Wallet, 0, len(t.changedWallets))
	for _, w := range t.changedWallets {
		wallets = append(wallets, w)
	}

	var balances []*wallet.AssetBalance
	for _, byAsset := range t.changedBalances {
		for _, b := range byAsset {
			balances = append(balances, b)
		}
	}

	return wallets, balances
}

// Commit merges every touched wallet into the live holder. This is the
// linearization point; it must only run after the durable write succeeded.
func (t *TransactionBalancesHolder) Commit() {
	wallets, _ := t.NetChanges()
	t.holder.CommitWallets(wallets)
}
