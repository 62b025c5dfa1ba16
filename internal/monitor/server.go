// Package monitor serves the operational HTTP surface: health, Prometheus
// metrics and the most recent scan results.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"daypick/internal/market"
	"daypick/internal/metrics"
	"daypick/internal/picker"
	"daypick/internal/store"
)

// ScanFunc runs one scan and returns its result with the run id of the
// artifacts it wrote.
type ScanFunc func(ctx context.Context) (*picker.Result, string, error)

// LatestResult is the JSON surface of the most recent scan.
type LatestResult struct {
	RunID         string                `json:"run_id,omitempty"`
	TradeDate     string                `json:"trade_date"`
	GeneratedAt   time.Time             `json:"generated_at"`
	StrongSectors []string              `json:"strong_sectors"`
	Rows          int                   `json:"rows"`
	Candidates    []market.CandidateRow `json:"candidates"`
}

// Server exposes the monitor endpoints over one http.Server.
type Server struct {
	router  *mux.Router
	srv     *http.Server
	metrics *metrics.Registry
	archive *store.CandidateDB
	scan    ScanFunc
	version string
	started time.Time

	mu     sync.RWMutex
	latest *LatestResult
}

// NewServer builds the monitor on addr. The archive and scan hooks are
// optional; their endpoints answer 404 until set.
func NewServer(addr, version string, reg *metrics.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		metrics: reg,
		version: version,
		started: time.Now(),
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// WithArchive backs /candidates/recent with the Postgres archive.
func (s *Server) WithArchive(db *store.CandidateDB) *Server {
	s.archive = db
	return s
}

// WithScan enables POST /scan.
func (s *Server) WithScan(fn ScanFunc) *Server {
	s.scan = fn
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/candidates/latest", s.handleLatest).Methods(http.MethodGet)
	s.router.HandleFunc("/candidates/recent", s.handleRecent).Methods(http.MethodGet)
	s.router.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
}

// Handler returns the routed handler, used directly in tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains open connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", s.srv.Addr).Msg("monitor listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("monitor server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down monitor: %w", err)
	}
	log.Info().Msg("monitor stopped")
	return nil
}

// SetLatest publishes one scan result to /candidates/latest.
func (s *Server) SetLatest(res *picker.Result, runID string) {
	strong := make([]string, 0, len(res.StrongSectors))
	for _, sec := range res.StrongSectors {
		strong = append(strong, sec.SectorID)
	}
	latest := &LatestResult{
		RunID:         runID,
		TradeDate:     market.DayOf(res.TradeDate).Format(market.DateFormat),
		GeneratedAt:   time.Now().UTC(),
		StrongSectors: strong,
		Rows:          len(res.Candidates),
		Candidates:    res.Candidates,
	}

	s.mu.Lock()
	s.latest = latest
	s.mu.Unlock()
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CacheHitRatio float64 `json:"cache_hit_ratio"`
	LastScanDate  string  `json:"last_scan_date,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		CacheHitRatio: s.metrics.CacheHitRatio(),
	}
	s.mu.RLock()
	if s.latest != nil {
		resp.LastScanDate = s.latest.TradeDate
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no scan has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "candidate archive not configured")
		return
	}
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}
	rows, err := s.archive.RecentCandidates(r.Context(), n)
	if err != nil {
		log.Error().Err(err).Msg("failed to load recent candidates")
		writeError(w, http.StatusInternalServerError, "failed to load recent candidates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":       len(rows),
		"candidates": rows,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scan == nil {
		writeError(w, http.StatusNotFound, "scan is not configured")
		return
	}
	start := time.Now()
	res, runID, err := s.scan(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("scan failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordScan(time.Since(start), len(res.Candidates), len(res.StrongSectors))
	s.SetLatest(res, runID)

	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
