package domain

import "time"

// DeviceStatus is the connectivity state of the actuator device.
type DeviceStatus string

const (
	DeviceConnected    DeviceStatus = "connected"
	DeviceDisconnected DeviceStatus = "disconnected"
)

// DeviceStats mirrors the statistics the device reports via STATUS and the
// counters the engine keeps locally.
type DeviceStats struct {
	Status        DeviceStatus
	CommandsSent  int64
	CommandsOK    int64
	CommandsFail  int64
	SuccessRate   float64
	LastCommandAt time.Time
	LastPongAt    time.Time
	Version       string
	UptimeMs      int64
}
