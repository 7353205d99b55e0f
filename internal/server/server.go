// Package server exposes the status sink, the control endpoint, metrics and
// the generated report over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
)

const (
	// CmdPRStatus 是 control 端點唯一接受的指令
	CmdPRStatus = "prstatus"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr      string
	Token     string // 非空時 PUT 需要相同的 Authorization
	OutputDir string // 非空時以靜態檔案提供報告目錄
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
}

// Server keeps the latest status document per run.
type Server struct {
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	statuses map[string]json.RawMessage
}

type putRequest struct {
	UID    string          `json:"uid"`
	Status json.RawMessage `json:"status"`
}

type controlRequest struct {
	Cmd    string          `json:"cmd"`
	PRNum  string          `json:"prnum"`
	Status json.RawMessage `json:"status"`
}

// New returns a Server with no stored statuses.
func New(opts Options) *Server {
	return &Server{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "server").Logger(),
		statuses: make(map[string]json.RawMessage),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.opts.Gatherer))

	r.Route("/jobs/running/{uid}/status", func(r chi.Router) {
		r.Put("/", s.handlePutStatus)
		r.Get("/", s.handleGetStatus)
	})
	r.Get("/jobs/running", s.handleListRuns)
	r.Post("/control", s.handleControl)

	if s.opts.OutputDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.OutputDir)))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("stopped")
	return nil
}

// Status returns the latest document stored for uid.
func (s *Server) Status(uid string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[uid]
	return st, ok
}

func (s *Server) store(uid string, status json.RawMessage) {
	s.mu.Lock()
	s.statuses[uid] = status
	s.mu.Unlock()
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}
	uid := chi.URLParam(r, "uid")

	var req putRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UID != "" && req.UID != uid {
		writeError(w, http.StatusBadRequest, "uid mismatch")
		return
	}
	if !isObject(req.Status) {
		writeError(w, http.StatusBadRequest, "status must be an object")
		return
	}

	s.store(uid, req.Status)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	st, ok := s.Status(uid)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	uids := make([]string, 0, len(s.statuses))
	for uid := range s.statuses {
		uids = append(uids, uid)
	}
	s.mu.RUnlock()
	sort.Strings(uids)
	writeJSON(w, http.StatusOK, map[string][]string{"runs": uids})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Cmd != CmdPRStatus {
		writeError(w, http.StatusBadRequest, "unsupported command")
		return
	}
	if req.PRNum == "" || !isObject(req.Status) {
		writeError(w, http.StatusBadRequest, "prnum and status are required")
		return
	}

	s.store(req.PRNum, req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// ============================================================================
// 輔助函數
// ============================================================================

func (s *Server) authorized(r *http.Request) bool {
	if s.opts.Token == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Token)) == 1
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func isObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	return len(raw) > 0 && json.Unmarshal(raw, &m) == nil && m != nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
