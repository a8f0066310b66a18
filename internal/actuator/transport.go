package actuator

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

// Transport is the newline-delimited link to the device. Implementations
// must keep Send safe for the engine goroutine and deliver incoming lines
// on Lines until closed.
type Transport interface {
	Send(line string) error
	Lines() <-chan string
	Close() error
}

// LineTransport wraps any ReadWriteCloser (a serial port in production, an
// in-memory pipe in tests) as a Transport.
type LineTransport struct {
	rw    io.ReadWriteCloser
	lines chan string
}

func NewLineTransport(rw io.ReadWriteCloser) *LineTransport {
	t := &LineTransport{
		rw:    rw,
		lines: make(chan string, 64),
	}
	go t.readLoop()
	return t
}

// OpenSerial opens the device serial port and wraps it as a transport.
func OpenSerial(port string, baud int) (*LineTransport, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return NewLineTransport(p), nil
}

func (t *LineTransport) Send(line string) error {
	if _, err := t.rw.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	return nil
}

func (t *LineTransport) Lines() <-chan string {
	return t.lines
}

func (t *LineTransport) Close() error {
	return t.rw.Close()
}

func (t *LineTransport) readLoop() {
	defer close(t.lines)

	scanner := bufio.NewScanner(t.rw)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case t.lines <- line:
		default:
			slog.Warn("Device reply buffer full, dropping line", "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Device read loop ended", "error", err)
	}
}
