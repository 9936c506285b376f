// Package status serves the terminal's local HTTP status API.
//
//	GET  /healthz                liveness
//	GET  /status                 pending count, online flag, last sync cycle
//	POST /sync                   run a sync cycle now
//	GET  /transactions/{id}      one recorded transaction
//	GET  /customers?q=&limit=    offline customer search
//	GET  /menu                   cached menu (X-Menu-Stale: true when stale)
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/possync/internal/menucache"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/syncer"
)

// Syncer is the sync manager as seen by the API.
type Syncer interface {
	Pending(ctx context.Context) (int, error)
	Online() bool
	LastCycle() (syncer.CycleResult, bool)
	SyncNow(ctx context.Context) (syncer.CycleResult, error)
}

// Transactions reads recorded transactions.
type Transactions interface {
	GetTransaction(ctx context.Context, id string) (pos.OfflineTransaction, error)
}

// Customers searches the customer cache.
type Customers interface {
	Search(ctx context.Context, query string, limit int) ([]pos.Customer, error)
}

// Menu returns the cached menu.
type Menu interface {
	Get(ctx context.Context) (pos.MenuSnapshot, error)
}

// Server wires the API handlers.
type Server struct {
	TerminalID   string
	Syncer       Syncer
	Transactions Transactions
	Customers    Customers
	Menu         Menu
	Logger       *slog.Logger
	Timeout      time.Duration
}

// Report is the GET /status body.
type Report struct {
	TerminalID string              `json:"terminal_id,omitempty"`
	Online     bool                `json:"online"`
	Pending    int                 `json:"pending"`
	LastCycle  *syncer.CycleResult `json:"last_cycle,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.getStatus)
	r.Post("/sync", s.postSync)
	r.Get("/transactions/{id}", s.getTransaction)
	r.Get("/customers", s.searchCustomers)
	r.Get("/menu", s.getMenu)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger().Info("status API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	if s.Syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_disabled", "sync is not configured")
		return
	}
	pending, err := s.Syncer.Pending(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	rep := Report{TerminalID: s.TerminalID, Online: s.Syncer.Online(), Pending: pending}
	if last, ok := s.Syncer.LastCycle(); ok {
		rep.LastCycle = &last
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) postSync(w http.ResponseWriter, r *http.Request) {
	if s.Syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_disabled", "sync is not configured")
		return
	}
	res, err := s.Syncer.SyncNow(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	code := http.StatusOK
	if res.Skipped == syncer.SkipBusy {
		code = http.StatusConflict
	}
	respondJSON(w, code, res)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := s.Transactions.GetTransaction(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) searchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	found, err := s.Customers.Search(r.Context(), q, limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, found)
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Menu.Get(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, menucache.ErrStale):
		w.Header().Set("X-Menu-Stale", "true")
	case errors.Is(err, menucache.ErrNoMenu):
		respondError(w, http.StatusNotFound, "no_menu", err.Error())
		return
	default:
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case store.IsUnavailable(err):
		s.logger().Error("storage unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "local storage is unavailable")
	default:
		s.logger().Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
