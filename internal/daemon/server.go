package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/autoreader/internal/api"
	"github.com/matheus3301/autoreader/internal/config"
	"go.uber.org/zap"
)

// Server manages the HTTP read API lifecycle. An empty http.addr leaves
// it disabled and Start/Stop become no-ops.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer binds the API listener so address conflicts fail at startup.
func NewServer(cfg *config.Config, h *api.Handler, logger *zap.Logger) (*Server, error) {
	s := &Server{logger: logger}
	if cfg.HTTP.Addr == "" {
		logger.Info("http api disabled")
		return s, nil
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           api.NewRouter(h, cfg.HTTP.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	s.httpServer.RegisterOnShutdown(h.Close)
	return s, nil
}

// Addr returns the bound address, or empty when disabled.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves requests. Blocks until stopped.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http server starting", zap.String("addr", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown", zap.Error(err))
	}
}
