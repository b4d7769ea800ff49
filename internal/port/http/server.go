package http

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/platform/logger"
)

// Server wraps the echo instance with the service's lifecycle hooks.
type Server struct {
	echo *echo.Echo
	cfg  config.HTTPServerConfig
	log  logger.Logger
}

func NewServer(cfg config.HTTPServerConfig, jwtSecret string, handler *Handler, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())

	e.Server.ReadTimeout = cfg.ReadTimeout
	// SSE connections outlive any sane write timeout, so echo's per-route
	// timeout middleware is not used and WriteTimeout stays unset.

	handler.Register(e, jwtSecret)

	return &Server{echo: e, cfg: cfg, log: log}
}

func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	s.log.Infof("HTTP server listening on %s", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
