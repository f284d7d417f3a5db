package dictionary

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUnknownAsset marks a dictionary miss. An asset symbol that appears in
// a wallet operation but not in the dictionary is a data setup problem
// upstream, not a recoverable per-transaction error.
var ErrUnknownAsset = errors.New("unknown asset")

// Asset identifies a currency or instrument. Immutable once loaded.
type Asset struct {
	Symbol   string
	Accuracy int32 // decimal scale for rounding
}

// Round rounds a value to the asset's accuracy, half away from zero.
func (a Asset) Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(a.Accuracy)
}

// AssetsAccessor loads the asset dictionary from durable storage.
type AssetsAccessor interface {
	LoadAssets(ctx context.Context) ([]Asset, error)
}

// AssetsHolder is the in-memory asset dictionary, refreshed from the
// accessor at startup. Reads are safe for concurrent use.
type AssetsHolder struct {
	mu       sync.RWMutex
	assets   map[string]Asset
	accessor AssetsAccessor
	log      zerolog.Logger
}

func NewAssetsHolder(accessor AssetsAccessor, log zerolog.Logger) *AssetsHolder {
	return &AssetsHolder{
		assets:   make(map[string]Asset),
		accessor: accessor,
		log:      log,
	}
}

// Load replaces the dictionary with the accessor's current contents.
func (h *AssetsHolder) Load(ctx context.Context) error {
	assets, err := h.accessor.LoadAssets(ctx)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}

	loaded := make(map[string]Asset, len(assets))
	for _, a := range assets {
		loaded[a.Symbol] = a
	}

	h.mu.Lock()
	h.assets = loaded
	h.mu.Unlock()

	h.log.Info().Int("count", len(loaded)).Msg("asset dictionary loaded")
	return nil
}

// Asset returns the dictionary entry for a symbol. A miss wraps
// ErrUnknownAsset and must be treated as fatal for the operation.
func (h *AssetsHolder) Asset(symbol string) (Asset, error) {
	h.mu.RLock()
	a, ok := h.assets[symbol]
	h.mu.RUnlock()
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}
