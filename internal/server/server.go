// Package server exposes the HTTP trigger for visit batches.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ibeckermayer/visitbatch/internal/store"
)

// Trigger starts batches and reports their history. *app.App implements it.
type Trigger interface {
	TriggerBatch() (id string, size int, err error)
	RecentBatches(ctx context.Context, limit int) ([]store.Batch, error)
}

// Server routes HTTP requests to a Trigger.
type Server struct {
	trigger Trigger
	mux     *http.ServeMux
}

// New creates a server with all routes registered.
func New(t Trigger) *Server {
	s := &Server{trigger: t, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /visit", s.handleVisit)
	s.mux.HandleFunc("GET /batches", s.handleBatches)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] Listening on http://localhost:%d", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("[server] Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// ── GET /visit ─────────────────────────────────────────────

// handleVisit answers before the batch does any work.
func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	_, size, err := s.trigger.TriggerBatch()
	if err != nil {
		log.Printf("[server] Could not start batch: %v", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Batch of %d visits scheduled", size)
}

// ── GET /batches ───────────────────────────────────────────

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	batches, err := s.trigger.RecentBatches(r.Context(), limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNoHistory) {
			status = http.StatusNotFound
		}
		jsonErr(w, status, err)
		return
	}
	if batches == nil {
		batches = []store.Batch{}
	}
	jsonResp(w, http.StatusOK, map[string]any{"batches": batches})
}

// ── GET /health ────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{"status": "ok"})
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] Failed to write response: %v", err)
	}
}

func jsonErr(w http.ResponseWriter, code int, err error) {
	jsonResp(w, code, map[string]string{"error": err.Error()})
}
