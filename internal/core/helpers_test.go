package core

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/wallet"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = observability.NewMetrics()

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeWalletsAccessor struct {
	wallets map[string]*wallet.Wallet
}

func (f *fakeWalletsAccessor) LoadWallets(context.Context) (map[string]*wallet.Wallet, error) {
	return f.wallets, nil
}

type fakePolicy struct {
	trusted map[string]bool
}

func (f *fakePolicy) IsTrustedClient(clientID string) bool {
	return f.trusted[clientID]
}

type fakeAssetsAccessor struct{}

func (fakeAssetsAccessor) LoadAssets(context.Context) ([]dictionary.Asset, error) {
	return []dictionary.Asset{
		{Symbol: "BTC", Accuracy: 8},
		{Symbol: "USD", Accuracy: 2},
	}, nil
}

type fakeCoordinator struct {
	fail    bool
	batches []PersistenceBatch
}

func (f *fakeCoordinator) Persist(_ context.Context, batch PersistenceBatch) bool {
	f.batches = append(f.batches, batch)
	return !f.fail
}

type fakeDedupDB struct {
	processed map[string]bool
	err       error
}

func (f *fakeDedupDB) IsProcessed(msgType, messageID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.processed[msgType+":"+messageID], nil
}

func seedBalance(clientID, asset, balance, reserved, reservedForSwap string, version int64) *wallet.AssetBalance {
	b := wallet.NewAssetBalance("broker-1", "account-1", clientID, asset)
	b.Balance = d(balance)
	b.Reserved = d(reserved)
	b.ReservedForSwap = d(reservedForSwap)
	b.Version = version
	return b
}

func newTestHolder(t *testing.T, trusted map[string]bool, balances ...*wallet.AssetBalance) *BalancesHolder {
	t.Helper()

	wallets := make(map[string]*wallet.Wallet)
	for _, b := range balances {
		w, ok := wallets[b.ClientID]
		if !ok {
			w = wallet.NewWallet(b.Broker, b.Account, b.ClientID)
			wallets[b.ClientID] = w
		}
		w.SetBalance(b)
	}

	holder := NewBalancesHolder(
		&fakeWalletsAccessor{wallets: wallets},
		&fakePolicy{trusted: trusted},
		zerolog.Nop(),
	)
	require.NoError(t, holder.Load(context.Background()))
	return holder
}

func newTestAssets(t *testing.T) *dictionary.AssetsHolder {
	t.Helper()
	assets := dictionary.NewAssetsHolder(fakeAssetsAccessor{}, zerolog.Nop())
	require.NoError(t, assets.Load(context.Background()))
	return assets
}

func newTestProcessor(t *testing.T, holder *BalancesHolder, coordinator *fakeCoordinator) *WalletOperationsProcessor {
	t.Helper()
	return NewWalletOperationsProcessor(
		"TestOperation", holder, newTestAssets(t), coordinator, zerolog.Nop(), testMetrics)
}
