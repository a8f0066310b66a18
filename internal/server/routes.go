package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Read-only state
	s.echo.GET("/api/snapshot", s.handleSnapshot)
	s.echo.GET("/api/device", s.handleDevice)
	s.echo.GET("/api/session", s.handleSession)

	// Control surface
	s.echo.POST("/api/session/start", s.handleSessionStart)
	s.echo.POST("/api/session/stop", s.handleSessionStop)
	s.echo.POST("/api/emergency-stop", s.handleEmergencyStop)
	s.echo.POST("/api/device/test", s.handleDeviceTest)
}
