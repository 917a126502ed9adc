// Package api serves the provider operations over HTTP so a sandbox
// orchestrator can drive gns3cp as a remote driver. It also exposes
// /health and the prometheus /metrics endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newtron-network/gns3cp/pkg/provider"
	"github.com/newtron-network/gns3cp/pkg/util"
	"github.com/newtron-network/gns3cp/pkg/version"
)

// Server is the HTTP endpoint.
type Server struct {
	echo     *echo.Echo
	provider *provider.Provider
	listen   string
}

// New returns a server for p that will listen on listen (host:port).
func New(p *provider.Provider, listen string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	s := &Server{echo: e, provider: p, listen: listen}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			util.WithFields(map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			}).Debug("api request")
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/discover", s.discover)
	v1.POST("/deploy", s.deploy)
	v1.POST("/infra", s.prepareInfra)
	v1.POST("/connectivity", s.applyConnectivity)
	v1.GET("/records", s.records)
	v1.GET("/audit", s.auditLog)

	res := v1.Group("/reservations/:reservation")
	res.DELETE("", s.cleanupInfra)
	res.GET("/records", s.records)
	res.POST("/details", s.details)
	res.DELETE("/nodes/:node_id", s.deleteInstance)
	res.POST("/nodes/:node_id/power_on", s.powerOn)
	res.POST("/nodes/:node_id/power_off", s.powerOff)
}

// Start listens until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.echo.Server.ReadHeaderTimeout = 30 * time.Second
	util.WithField("listen", s.listen).Info("starting gns3cp API server")
	if err := s.echo.Start(s.listen); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted or tested without listening.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
