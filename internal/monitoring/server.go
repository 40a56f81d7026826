package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
)

// ProgressFunc returns the current run snapshot for the progress endpoint.
// It must be safe to call from any goroutine.
type ProgressFunc func() interface{}

// Server serves /metrics, /healthz and /progress while a run is active.
type Server struct {
	server   *http.Server
	logger   *zap.Logger
	progress ProgressFunc
}

// NewServer builds the operational HTTP server. A nil progress function
// leaves /progress serving an empty object.
func NewServer(cfg config.MonitoringConfig, metrics *Metrics, progress ProgressFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{logger: logger, progress: progress}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It returns the listener error, nil on a
// clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("monitoring server listening", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("monitoring server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.progress == nil {
		w.Write([]byte("{}\n"))
		return
	}
	if err := json.NewEncoder(w).Encode(s.progress()); err != nil {
		s.logger.Warn("failed to encode progress snapshot", zap.Error(err))
	}
}
