package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"subalign/internal/api"
	"subalign/internal/config"
	"subalign/internal/logging"
	"subalign/internal/observe"
	"subalign/internal/staging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil, errors.New("server.bind is empty")
	}

	var (
		metrics        *observe.Metrics
		metricsHandler http.Handler
	)
	if d.metrics != nil {
		metrics = d.metrics.Metrics
		metricsHandler = d.metrics.Handler
	}
	handler := api.NewServer(api.Options{
		Queue:           d.workflow,
		Store:           d.store,
		Staging:         staging.New(cfg.Paths.UploadDir),
		OutputDir:       cfg.Paths.OutputDir,
		Models:          d.provider,
		DefaultModel:    cfg.Aligner.DefaultModel,
		DefaultLanguage: cfg.Aligner.DefaultLanguage,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		APIToken:        cfg.Server.APIToken,
		Version:         d.version,
		Metrics:         metrics,
		MetricsHandler:  metricsHandler,
		Dependencies:    d.Dependencies,
		Preflight:       d.Preflight,
		Logger:          logger,
	})

	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			// Uploads and downloads of long recordings take a while on slow
			// links; only idle connections are cut aggressively.
			ReadTimeout:  10 * time.Minute,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("url", browserURL(listener.Addr().String())),
	)
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// browserURL turns a listener address into something a browser can open.
// Wildcard hosts are replaced with localhost.
func browserURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
