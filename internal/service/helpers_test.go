package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"SpotLedger/internal/core"
	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/event"
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

type fakePolicy struct{}

func (fakePolicy) IsTrustedClient(string) bool { return false }

type fakeAssetsAccessor struct{}

func (fakeAssetsAccessor) LoadAssets(context.Context) ([]dictionary.Asset, error) {
	return []dictionary.Asset{
		{Symbol: "BTC", Accuracy: 8},
		{Symbol: "USD", Accuracy: 2},
	}, nil
}

type fakeCoordinator struct {
	fail    bool
	batches []core.PersistenceBatch
}

func (f *fakeCoordinator) Persist(_ context.Context, batch core.PersistenceBatch) bool {
	f.batches = append(f.batches, batch)
	return !f.fail
}

// testEnv bundles the wired single-writer dependencies for service tests.
type testEnv struct {
	holder      *core.BalancesHolder
	coordinator *fakeCoordinator
	dedup       *core.MessageDeduplicator
	sequencer   *core.Sequencer
	cash        *CashOperationService
	transfer    *TransferService
	recalc      *ReservedRecalculationService
}

func newTestEnv(t *testing.T, balances ...*wallet.AssetBalance) *testEnv {
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

	holder := core.NewBalancesHolder(&fakeWalletsAccessor{wallets: wallets}, fakePolicy{}, zerolog.Nop())
	require.NoError(t, holder.Load(context.Background()))

	assets := dictionary.NewAssetsHolder(fakeAssetsAccessor{}, zerolog.Nop())
	require.NoError(t, assets.Load(context.Background()))

	coordinator := &fakeCoordinator{}
	dedup := core.NewMessageDeduplicator(128, nil, zerolog.Nop(), testMetrics)
	sequencer := core.NewSequencer(0)
	publisher := event.NewOutboundPublisher(nil, 128, zerolog.Nop(), testMetrics)

	recalculator := core.NewReservedVolumesRecalculator(holder, assets, coordinator, sequencer, zerolog.Nop())

	return &testEnv{
		holder:      holder,
		coordinator: coordinator,
		dedup:       dedup,
		sequencer:   sequencer,
		cash: NewCashOperationService(
			holder, assets, coordinator, dedup, sequencer, publisher, zerolog.Nop(), testMetrics),
		transfer: NewTransferService(
			holder, assets, coordinator, dedup, sequencer, publisher, zerolog.Nop(), testMetrics),
		recalc: NewReservedRecalculationService(
			recalculator, dedup, publisher, zerolog.Nop(), testMetrics),
	}
}

func seedBalance(clientID, asset, balance, reserved string, version int64) *wallet.AssetBalance {
	b := wallet.NewAssetBalance("broker-1", "account-1", clientID, asset)
	b.Balance = d(balance)
	b.Reserved = d(reserved)
	b.Version = version
	return b
}
