package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/internal/database"
	"github.com/jgoulah/ecomane/pkg/models"
)

const (
	defaultLimit = 100
	maxLimit     = 10000
)

// State is the read side of the coordinator
type State interface {
	Last() *models.Poll
	LastError() error
	UsageMetrics() []models.UsageMetric
}

// History is the stored poll history. It is optional.
type History interface {
	ListPolls(limit int) ([]database.PollRecord, error)
	History(key string, limit int) ([]database.Reading, error)
}

// Server serves the latest snapshot over HTTP
type Server struct {
	listenAddr string
	state      State
	history    History
	gatherer   prometheus.Gatherer
	logger     *zap.Logger

	httpServer *http.Server
}

// New creates a server. history may be nil when the database is disabled.
func New(listenAddr string, state State, history History, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	return &Server{
		listenAddr: listenAddr,
		state:      state,
		history:    history,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/usage", s.handleUsage)
		r.Get("/circuits", s.handleCircuits)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/polls", s.handlePolls)
		r.Get("/history/{key}", s.handleHistory)
	})

	return gziphandler.GzipHandler(r)
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("Starting HTTP server", zap.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

type healthResponse struct {
	Status      string     `json:"status"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if err := s.state.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	poll := s.state.Last()
	if poll == nil {
		resp.Status = "starting"
		respondJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.LastSuccess = &poll.FinishedAt
	if resp.LastError != "" {
		resp.Status = "degraded"
	}
	respondJSON(w, resp)
}

type snapshotResponse struct {
	PollID       string          `json:"poll_id"`
	FinishedAt   time.Time       `json:"finished_at"`
	CircuitCount int             `json:"circuit_count"`
	Snapshot     models.Snapshot `json:"snapshot"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	poll, ok := s.requirePoll(w)
	if !ok {
		return
	}
	respondJSON(w, snapshotResponse{
		PollID:       poll.ID,
		FinishedAt:   poll.FinishedAt,
		CircuitCount: poll.CircuitCount,
		Snapshot:     poll.Snapshot,
	})
}

type usageValue struct {
	models.UsageMetric
	Value string `json:"value"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	poll, ok := s.requirePoll(w)
	if !ok {
		return
	}

	out := []usageValue{}
	for _, m := range s.state.UsageMetrics() {
		value, ok := poll.Snapshot[m.Key]
		if !ok {
			continue
		}
		out = append(out, usageValue{UsageMetric: m, Value: value})
	}
	respondJSON(w, out)
}

type circuitView struct {
	models.Circuit
	Entity string `json:"entity"`
}

func (s *Server) handleCircuits(w http.ResponseWriter, r *http.Request) {
	poll, ok := s.requirePoll(w)
	if !ok {
		return
	}

	out := []circuitView{}
	for _, c := range poll.Circuits() {
		out = append(out, circuitView{Circuit: c, Entity: c.EntityName()})
	}
	respondJSON(w, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.state.UsageMetrics())
}

func (s *Server) handlePolls(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	polls, err := s.history.ListPolls(limit)
	if err != nil {
		s.logger.Error("Listing polls failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if polls == nil {
		polls = []database.PollRecord{}
	}
	respondJSON(w, polls)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	readings, err := s.history.History(chi.URLParam(r, "key"), limit)
	if err != nil {
		s.logger.Error("Reading history failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if readings == nil {
		readings = []database.Reading{}
	}
	respondJSON(w, readings)
}

func (s *Server) requirePoll(w http.ResponseWriter) (*models.Poll, bool) {
	poll := s.state.Last()
	if poll == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("no successful poll yet"))
		return nil, false
	}
	return poll, true
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		respondError(w, http.StatusNotFound, errors.New("history is disabled"))
		return false
	}
	return true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxLimit), nil
}

func respondJSON(w http.ResponseWriter, payload any) {
	respondJSONStatus(w, http.StatusOK, payload)
}

func respondJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSONStatus(w, status, map[string]string{"error": err.Error()})
}
