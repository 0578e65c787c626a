package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server представляет HTTP сервер Mini App
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// NewServer создает HTTP сервер с middleware трассировки и метрик
func NewServer(handler *Handler, port int, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(server.TracingMiddleware(logger))
	engine.Use(server.MetricsMiddleware())

	handler.RegisterRoutes(engine)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
		logger: logger,
	}
}

// Run запускает HTTP сервер (блокирующий вызов)
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown корректно останавливает HTTP сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.http.Shutdown(ctx)
}
