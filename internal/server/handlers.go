package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/actuator"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
)

func (s *Server) handleSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, s.live.Snapshot())
}

func (s *Server) handleDevice(c echo.Context) error {
	snap := s.live.Snapshot()
	return c.JSON(http.StatusOK, snap.Device)
}

func (s *Server) handleSession(c echo.Context) error {
	rec := s.sessions.Current()
	if rec == nil {
		return c.JSON(http.StatusOK, map[string]any{"state": string(domain.SessionIdle)})
	}
	return c.JSON(http.StatusOK, sessionResponse(*rec))
}

type startSessionRequest struct {
	RoomID string `json:"room_id"`
}

func (s *Server) handleSessionStart(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rec, err := s.sessions.StartManual(c.Request().Context(), req.RoomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, sessionResponse(rec))
}

func (s *Server) handleSessionStop(c echo.Context) error {
	err := s.sessions.Stop(c.Request().Context(), true)
	if errors.Is(err, domain.ErrNoActiveSession) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "no active session"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleEmergencyStop(c echo.Context) error {
	s.stopper.EmergencyStop()
	return c.JSON(http.StatusOK, map[string]string{"status": "emergency_stop_issued"})
}

type deviceTestRequest struct {
	Line string `json:"line"`
}

// handleDeviceTest validates a raw protocol line and writes it to the device.
// Intended for bench testing wiring without going through the rule pipeline.
func (s *Server) handleDeviceTest(c echo.Context) error {
	var req deviceTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	cmd, err := actuator.ParseCommand(req.Line)
	if err != nil {
		var perr *domain.ProtocolError
		if errors.As(err, &perr) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error":  perr.Reason,
				"detail": perr.Detail,
			})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := s.device.Send(cmd.Encode()); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent", "encoded": cmd.Encode()})
}

func sessionResponse(rec domain.SessionRecord) map[string]any {
	resp := map[string]any{
		"session_id": rec.SessionID.String(),
		"account_id": rec.AccountID,
		"room_id":    rec.RoomID,
		"state":      string(rec.State),
		"started_at": rec.StartedAt,
	}
	if !rec.EndedAt.IsZero() {
		resp["ended_at"] = rec.EndedAt
	}
	return resp
}
