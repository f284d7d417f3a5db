package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/wallet"
)

// OrderReservation is the amount one open order holds against a client's
// asset. The recalculator only sees these opaque value records, never the
// order objects themselves.
type OrderReservation struct {
	Broker   string
	Account  string
	ClientID string
	Asset    string
	Volume   decimal.Decimal
}

// ReservedVolumesRecalculator rebuilds the reserved-for-orders leg of every
// wallet from the authoritative set of open-order reservations.
//
// This is the one path that rewrites reservations outside the normal
// delta-aggregation protocol. It still routes through a transaction buffer
// and the persistence coordinator, and it runs only at controlled
// maintenance points (startup, operator request), never under steady-state
// load.
type ReservedVolumesRecalculator struct {
	holder      *BalancesHolder
	assets      *dictionary.AssetsHolder
	coordinator PersistenceCoordinator
	sequencer   *Sequencer
	log         zerolog.Logger
}

func NewReservedVolumesRecalculator(
	holder *BalancesHolder,
	assets *dictionary.AssetsHolder,
	coordinator PersistenceCoordinator,
	sequencer *Sequencer,
	log zerolog.Logger,
) *ReservedVolumesRecalculator {
	return &ReservedVolumesRecalculator{
		holder:      holder,
		assets:      assets,
		coordinator: coordinator,
		sequencer:   sequencer,
		log:         log,
	}
}

// Recalculate sums reservations per (client, asset), compares them to the
// live reserved values across all wallets, stages every mismatch through a
// transaction buffer and persists+commits the corrections in one unit.
// A non-nil dedup record rides in the same durable write. A correcting run
// consumes a fresh sequence number, persisted with the batch; a consistent
// state returns sequence 0 without touching the sequencer. Returns the
// balance updates for the corrected wallets and the assigned sequence.
func (r *ReservedVolumesRecalculator) Recalculate(ctx context.Context, reservations []OrderReservation, dedup *ProcessedMessage) ([]wallet.ClientBalanceUpdate, int64, error) {
	targets := make(map[wallet.Key]decimal.Decimal)
	seeds := make(map[wallet.Key]OrderReservation)
	for _, res := range reservations {
		key := wallet.Key{ClientID: res.ClientID, Asset: res.Asset}
		asset, err := r.assets.Asset(res.Asset)
		if err != nil {
			return nil, 0, err
		}
		targets[key] = asset.Round(targets[key].Add(res.Volume))
		if _, ok := seeds[key]; !ok {
			seeds[key] = res
		}
	}

	// Wallets whose reserved leg must drop back to zero: live reservation
	// exists but no open order backs it.
	r.holder.ForEachWallet(func(w *wallet.Wallet) {
		for asset, b := range w.Balances {
			key := wallet.Key{ClientID: w.ClientID, Asset: asset}
			if _, ok := targets[key]; !ok && !b.Reserved.IsZero() {
				targets[key] = decimal.Zero
				seeds[key] = OrderReservation{
					Broker:   w.Broker,
					Account:  w.Account,
					ClientID: w.ClientID,
					Asset:    asset,
				}
			}
		}
	})

	tx := NewTransaction(r.holder)
	var updates []wallet.ClientBalanceUpdate
	for key, target := range targets {
		seed := seeds[key]
		current := tx.EffectiveBalance(seed.Broker, seed.Account, key.ClientID, key.Asset)
		if current.Reserved.Equal(target) {
			continue
		}
		r.log.Info().
			Str("client", key.ClientID).
			Str("asset", key.Asset).
			Str("old_reserved", current.Reserved.String()).
			Str("new_reserved", target.String()).
			Msg("reserved volume corrected")
		tx.SetReserved(seed.Broker, seed.Account, key.ClientID, key.Asset, target)
		after := tx.EffectiveBalance(seed.Broker, seed.Account, key.ClientID, key.Asset)
		updates = append(updates, wallet.ClientBalanceUpdate{
			ClientID:    key.ClientID,
			Asset:       key.Asset,
			OldBalance:  current.Balance,
			NewBalance:  after.Balance,
			OldReserved: current.TotalReserved(),
			NewReserved: after.TotalReserved(),
			Version:     after.Version,
		})
	}

	if len(updates) == 0 {
		r.log.Info().Msg("reserved volumes consistent, nothing to correct")
		return nil, 0, nil
	}

	seq := r.sequencer.Next()
	wallets, balances := tx.NetChanges()
	batch := PersistenceBatch{Wallets: wallets, Balances: balances, Dedup: dedup, Sequence: &seq}
	if !r.coordinator.Persist(ctx, batch) {
		return nil, 0, fmt.Errorf("persist recalculated reserved volumes failed")
	}
	tx.Commit()

	r.log.Info().Int("corrected", len(updates)).Int64("sequence", seq).Msg("reserved volumes recalculated")
	return updates, seq, nil
}
