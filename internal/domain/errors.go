package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedEventKind = errors.New("unrecognized event kind")
	ErrDeviceTimeout         = errors.New("device heartbeat timeout")
	ErrDeviceDisconnected    = errors.New("device disconnected")
	ErrUnknownPin            = errors.New("pin not configured")
	ErrStreakState           = errors.New("inconsistent streak state")
	ErrSessionConflict       = errors.New("session continuation conflict")
	ErrNoActiveSession       = errors.New("no active session")
)

// ProtocolError is a malformed or unknown wire command or reply. It is
// answered with an ERROR reply; the connection stays open.
type ProtocolError struct {
	Reason string
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol error: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}
