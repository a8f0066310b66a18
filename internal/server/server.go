// Package server exposes the read-only HTTP surface: live snapshot, device
// status, session control and observability endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/config"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

// snapshotSource is the live-state read side.
type snapshotSource interface {
	Snapshot() domain.LiveSnapshot
}

// sessionControl is the manual session lifecycle surface.
type sessionControl interface {
	StartManual(ctx context.Context, roomID string) (domain.SessionRecord, error)
	Stop(ctx context.Context, manual bool) error
	Current() *domain.SessionRecord
}

// emergencyStopper preempts in-flight actuator execution.
type emergencyStopper interface {
	EmergencyStop()
}

// deviceLink writes raw protocol lines, used by the device test endpoint.
type deviceLink interface {
	Send(line string) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	live      snapshotSource
	sessions  sessionControl
	stopper   emergencyStopper
	device    deviceLink
	rdb       *goredis.Client
	pool      *pgxpool.Pool
	startTime time.Time
}

func NewServer(cfg *config.Config, live snapshotSource, sessions sessionControl, stopper emergencyStopper, device deviceLink, rdb *goredis.Client, pool *pgxpool.Pool, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)

	srv := &Server{
		echo:      e,
		config:    cfg,
		live:      live,
		sessions:  sessions,
		stopper:   stopper,
		device:    device,
		rdb:       rdb,
		pool:      pool,
		startTime: clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

// correlationMiddleware tags every request context with a correlation ID so
// handler log lines can be tied together.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(correlation.Ensure(req.Context())))
		return next(c)
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
