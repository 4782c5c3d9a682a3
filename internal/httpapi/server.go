// Package httpapi implements C6: the pull-sync HTTP surface spec.md
// §6 defines. Handlers are pure functions of the store snapshot at
// request time; they never initiate a sync themselves.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
)

// IdleStateProvider supplies /debug/idle_state's payload. The
// scheduler (C7) implements it; httpapi depends only on this narrow
// interface to avoid importing the scheduler package directly.
type IdleStateProvider interface {
	IdleState() (IdleState, bool)
}

// Server wraps a node's stores behind the spec.md §6 HTTP surface.
type Server struct {
	ledger   *ledger.Store
	chain    *chain.Store
	registry *p2p.Registry
	idle     IdleStateProvider
	log      *slog.Logger

	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
}

// NewServer wires a Server to a node's stores. idle may be nil before
// the scheduler has started; /debug/idle_state then always reports
// 503. A nil log discards handler-level logging.
func NewServer(ledgerStore *ledger.Store, chainStore *chain.Store, registry *p2p.Registry, idle IdleStateProvider, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{ledger: ledgerStore, chain: chainStore, registry: registry, idle: idle, log: log}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_fact_ids", s.handleGetFactIDs)
	mux.HandleFunc("/get_facts_by_id", s.handleGetFactsByID)
	mux.HandleFunc("/get_chain_head", s.handleGetChainHead)
	mux.HandleFunc("/get_blocks_after", s.handleGetBlocksAfter)
	mux.HandleFunc("/get_peers", s.handleGetPeers)
	mux.HandleFunc("/fragment_opinion", s.handleFragmentOpinion)
	mux.HandleFunc("/debug/idle_state", s.handleDebugIdleState)
	return s.withPeerRegistration(mux)
}

// withPeerRegistration registers the sender of any request carrying
// X-Axiom-Peer before delegating to next, per spec.md §4.5's
// reciprocity requirement.
func (s *Server) withPeerRegistration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if peerURL := r.Header.Get(p2p.PeerHeader); peerURL != "" && s.registry != nil {
			_ = s.registry.Register(r.Context(), peerURL)
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the server's http.Handler, for embedding in another
// mux or in tests.
func (s *Server) Handler() http.Handler {
	return s.mux()
}

// ListenAndServe starts the HTTP server on addr and blocks until ctx
// is canceled, at which point it shuts down gracefully within 5s.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv.Serve(listener)
}

// Addr returns the address the server is listening on, once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
