package core

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SpotLedger/internal/dictionary"
	"SpotLedger/internal/observability"
	"SpotLedger/internal/wallet"
)

// ApplyMode makes the force-apply escape hatch visible at call sites.
type ApplyMode int

const (
	// Strict rejects the whole batch on the first invariant violation.
	Strict ApplyMode = iota
	// ForceApply records violations as errors and metrics but applies the
	// change anyway. Operational recovery scenarios only.
	ForceApply
)

func (m ApplyMode) String() string {
	if m == ForceApply {
		return "force_apply"
	}
	return "strict"
}

// changedAssetBalance is the buffer-scoped before/after state of one
// (client, asset) pair within a transaction. Created on first touch,
// discarded with the processor; never persisted directly.
type changedAssetBalance struct {
	clientID string
	asset    string

	balance *wallet.AssetBalance // working copy owned by the transaction buffer

	originBalance         decimal.Decimal
	originReserved        decimal.Decimal
	originReservedForSwap decimal.Decimal
	originVersion         int64

	workBalance         decimal.Decimal
	workReserved        decimal.Decimal
	workReservedForSwap decimal.Decimal
}

// changed reports whether any leg differs from its origin, ignoring scale.
func (c *changedAssetBalance) changed() bool {
	return !c.workBalance.Equal(c.originBalance) ||
		!c.workReserved.Equal(c.originReserved) ||
		!c.workReservedForSwap.Equal(c.originReservedForSwap)
}

// WalletOperationsProcessor turns batches of wallet operations into one
// validated, persisted, committed balance transaction. One processor is
// bound to one transaction buffer; successive PreProcess calls accumulate
// against the same transaction state.
type WalletOperationsProcessor struct {
	operation   string // operation type label for logs and metrics
	holder      *BalancesHolder
	assets      *dictionary.AssetsHolder
	coordinator PersistenceCoordinator
	log         zerolog.Logger
	metrics     *observability.Metrics

	tx      *TransactionBalancesHolder
	changes map[wallet.Key]*changedAssetBalance
	updates map[wallet.Key]*wallet.ClientBalanceUpdate

	persistAttempted bool
}

func NewWalletOperationsProcessor(
	operation string,
	holder *BalancesHolder,
	assets *dictionary.AssetsHolder,
	coordinator PersistenceCoordinator,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *WalletOperationsProcessor {
	return &WalletOperationsProcessor{
		operation:   operation,
		holder:      holder,
		assets:      assets,
		coordinator: coordinator,
		log:         log,
		metrics:     metrics,
		tx:          NewTransaction(holder),
		changes:     make(map[wallet.Key]*changedAssetBalance),
		updates:     make(map[wallet.Key]*wallet.ClientBalanceUpdate),
	}
}

// PreProcess aggregates a batch of operations into the transaction state
// and validates the result.
//
// Zero-amount operations of trusted clients are skipped entirely: no
// aggregation, no validation, no event. Trusted clients also never
// accumulate the reserved-for-orders leg; the swap-reservation leg applies
// regardless of trust. Amounts are rounded to the asset's accuracy, half
// away from zero.
//
// Under Strict the first violation aborts with nothing applied; the caller
// discards the processor and the snapshot store is untouched. Under
// ForceApply every violation is logged and counted, then applied anyway.
//
// Returns the processor for fluent batching across calls.
func (p *WalletOperationsProcessor) PreProcess(ops []wallet.Operation, mode ApplyMode) (*WalletOperationsProcessor, error) {
	if len(ops) == 0 {
		return p, nil
	}

	for _, op := range ops {
		trusted := p.holder.IsTrustedClient(op.ClientID)
		if op.Amount.IsZero() && trusted {
			continue
		}

		asset, err := p.assets.Asset(op.Asset)
		if err != nil {
			return nil, err
		}

		ch := p.workingChange(op)
		ch.workBalance = asset.Round(ch.workBalance.Add(op.Amount))
		if !trusted {
			ch.workReserved = asset.Round(ch.workReserved.Add(op.ReservedAmount))
		}
		ch.workReservedForSwap = asset.Round(ch.workReservedForSwap.Add(op.ReservedForSwapAmount))
	}

	for _, ch := range p.changes {
		err := wallet.ValidateBalanceChange(ch.clientID, ch.asset,
			ch.originBalance, ch.originReserved, ch.originReservedForSwap,
			ch.workBalance, ch.workReserved, ch.workReservedForSwap)
		if err == nil {
			continue
		}
		if mode == Strict {
			return nil, err
		}
		p.log.Error().Err(err).
			Str("operation", p.operation).
			Str("client", ch.clientID).
			Str("asset", ch.asset).
			Msg("force applying invalid balance change")
		if p.metrics != nil {
			p.metrics.ForceApplied.WithLabelValues(p.operation).Inc()
		}
	}

	p.materialize()
	return p, nil
}

// workingChange returns the aggregation record for an operation's
// (client, asset) pair, creating the transaction working copy on first touch.
func (p *WalletOperationsProcessor) workingChange(op wallet.Operation) *changedAssetBalance {
	key := op.Key()
	if ch, ok := p.changes[key]; ok {
		return ch
	}

	_, b := p.tx.WorkingBalance(op.Broker, op.Account, op.ClientID, op.Asset)
	ch := &changedAssetBalance{
		clientID:              op.ClientID,
		asset:                 op.Asset,
		balance:               b,
		originBalance:         b.Balance,
		originReserved:        b.Reserved,
		originReservedForSwap: b.ReservedForSwap,
		originVersion:         b.Version,
		workBalance:           b.Balance,
		workReserved:          b.Reserved,
		workReservedForSwap:   b.ReservedForSwap,
	}
	p.changes[key] = ch
	return ch
}

// materialize writes aggregated values into the working balances and
// maintains the merged ClientBalanceUpdate set. Idempotent across
// PreProcess calls: the version advances by exactly one per transaction no
// matter how many operations folded into a balance, and a net change that
// cancels out restores the origin values and drops the event.
func (p *WalletOperationsProcessor) materialize() {
	for key, ch := range p.changes {
		if !ch.changed() {
			ch.balance.Balance = ch.originBalance
			ch.balance.Reserved = ch.originReserved
			ch.balance.ReservedForSwap = ch.originReservedForSwap
			ch.balance.Version = ch.originVersion
			delete(p.updates, key)
			continue
		}

		ch.balance.Balance = ch.workBalance
		ch.balance.Reserved = ch.workReserved
		ch.balance.ReservedForSwap = ch.workReservedForSwap
		ch.balance.Version = ch.originVersion + 1

		u, ok := p.updates[key]
		if !ok {
			u = &wallet.ClientBalanceUpdate{
				ClientID:    ch.clientID,
				Asset:       ch.asset,
				OldBalance:  ch.originBalance,
				OldReserved: ch.originReserved.Add(ch.originReservedForSwap),
			}
			p.updates[key] = u
		}
		u.NewBalance = ch.workBalance
		u.NewReserved = ch.workReserved.Add(ch.workReservedForSwap)
		u.Version = ch.balance.Version

		if u.IsNoop() {
			delete(p.updates, key)
		}
	}
}

// ClientBalanceUpdates returns the change events for every pair that
// actually changed value, in deterministic order.
func (p *WalletOperationsProcessor) ClientBalanceUpdates() []wallet.ClientBalanceUpdate {
	keys := make([]wallet.Key, 0, len(p.updates))
	for key := range p.updates {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ClientID != keys[j].ClientID {
			return keys[i].ClientID < keys[j].ClientID
		}
		return keys[i].Asset < keys[j].Asset
	})

	updates := make([]wallet.ClientBalanceUpdate, 0, len(keys))
	for _, key := range keys {
		updates = append(updates, *p.updates[key])
	}
	return updates
}

// PersistBalances bundles the buffer's net changes with the co-located
// facts and hands them to the persistence coordinator as one atomic unit.
// The caller must call Apply only when this returns true; on false the
// snapshot store stays untouched and the transaction never happened.
//
// A transaction must not attempt persistence twice; a second call is an
// internal logic error and fails without reaching storage.
func (p *WalletOperationsProcessor) PersistBalances(ctx context.Context, dedup *ProcessedMessage, orderBook, stopOrderBook *OrderBookDelta, sequence *int64) bool {
	if p.persistAttempted {
		p.log.Error().
			Str("operation", p.operation).
			Msg("duplicate persist attempt within one transaction")
		if p.metrics != nil {
			p.metrics.PersistErrors.WithLabelValues("double_attempt").Inc()
		}
		return false
	}
	p.persistAttempted = true

	wallets, balances := p.tx.NetChanges()
	return p.coordinator.Persist(ctx, PersistenceBatch{
		Wallets:       wallets,
		Balances:      balances,
		Dedup:         dedup,
		OrderBook:     orderBook,
		StopOrderBook: stopOrderBook,
		Sequence:      sequence,
	})
}

// Apply commits the transaction buffer into the live snapshot store,
// making the staged wallets globally visible.
func (p *WalletOperationsProcessor) Apply() *WalletOperationsProcessor {
	p.tx.Commit()
	return p
}

// --- Balance Getter contract, served from the transaction buffer ---

func (p *WalletOperationsProcessor) AvailableBalance(broker, account, clientID, asset string) decimal.Decimal {
	b := p.tx.EffectiveBalance(broker, account, clientID, asset)
	return b.Available()
}

func (p *WalletOperationsProcessor) AvailableReservedBalance(broker, account, clientID, asset string) decimal.Decimal {
	b := p.tx.EffectiveBalance(broker, account, clientID, asset)
	return b.AvailableReserved()
}

func (p *WalletOperationsProcessor) ReservedForOrdersBalance(broker, account, clientID, asset string) decimal.Decimal {
	b := p.tx.EffectiveBalance(broker, account, clientID, asset)
	return b.Reserved
}

func (p *WalletOperationsProcessor) ReservedTotalBalance(broker, account, clientID, asset string) decimal.Decimal {
	b := p.tx.EffectiveBalance(broker, account, clientID, asset)
	return b.TotalReserved()
}

var _ wallet.BalanceGetter = (*WalletOperationsProcessor)(nil)
