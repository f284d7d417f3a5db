package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"SpotLedger/internal/observability"
	"SpotLedger/internal/query"
)

// HTTPServer serves the read-only JSON API. It only touches the persisted
// state through the query service, never the in-memory ledger, so it is
// safe to run alongside the single-writer loop.
type HTTPServer struct {
	addr    string
	queries *query.QueryService
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewHTTPServer(addr string, queries *query.QueryService, health *observability.HealthChecker, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		queries: queries,
		health:  health,
		log:     log,
	}
}

// Run serves until the context is cancelled.
func (s *HTTPServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/balances/", s.handleBalances)
	mux.HandleFunc("/v1/processed/", s.handleProcessed)
	mux.HandleFunc("/v1/sequence", s.handleSequence)
	mux.HandleFunc("/healthz", s.health.LivenessHandler)
	mux.HandleFunc("/readyz", s.health.ReadinessHandler)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// GET /v1/balances/{clientId}
// GET /v1/balances/{clientId}/{asset}
func (s *HTTPServer) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := splitPath(r.URL.Path, "/v1/balances/")
	switch len(parts) {
	case 1:
		resp, err := s.queries.ClientBalances(r.Context(), parts[0])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, resp)
	case 2:
		rec, err := s.queries.ClientAssetBalance(r.Context(), parts[0], parts[1])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, rec)
	default:
		http.NotFound(w, r)
	}
}

// GET /v1/processed/{type}/{messageId}
func (s *HTTPServer) handleProcessed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := splitPath(r.URL.Path, "/v1/processed/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	processed, err := s.queries.IsProcessed(r.Context(), parts[0], parts[1])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"processed": processed})
}

// GET /v1/sequence
func (s *HTTPServer) handleSequence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	seq, err := s.queries.LastSequence(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]int64{"sequence": seq})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("write response failed")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error().Err(err).Msg("query failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func splitPath(path, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
