package dictionary

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// SettingsAccessor loads policy settings from durable storage.
type SettingsAccessor interface {
	LoadTrustedClients(ctx context.Context) ([]string, error)
}

// SettingsHolder caches the trusted-client set. Trusted clients are exempt
// from order-reservation accounting on the wallet operation path: their
// zero-amount operations are skipped and their reserved-for-orders leg is
// never accumulated.
type SettingsHolder struct {
	mu       sync.RWMutex
	trusted  map[string]struct{}
	accessor SettingsAccessor
	log      zerolog.Logger
}

func NewSettingsHolder(accessor SettingsAccessor, log zerolog.Logger) *SettingsHolder {
	return &SettingsHolder{
		trusted:  make(map[string]struct{}),
		accessor: accessor,
		log:      log,
	}
}

// Load replaces the trusted-client set with the accessor's current contents.
func (h *SettingsHolder) Load(ctx context.Context) error {
	clients, err := h.accessor.LoadTrustedClients(ctx)
	if err != nil {
		return fmt.Errorf("load trusted clients: %w", err)
	}

	loaded := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		loaded[c] = struct{}{}
	}

	h.mu.Lock()
	h.trusted = loaded
	h.mu.Unlock()

	h.log.Info().Int("count", len(loaded)).Msg("trusted clients loaded")
	return nil
}

// IsTrustedClient reports whether the client is policy-flagged as trusted.
func (h *SettingsHolder) IsTrustedClient(clientID string) bool {
	h.mu.RLock()
	_, ok := h.trusted[clientID]
	h.mu.RUnlock()
	return ok
}
