package actuator

import (
	"fmt"
	"io"
	"math"
	"sync"

	"go.bug.st/serial"
)

const (
	maestroSetTarget   = 0x84
	maestroDefaultBaud = 9600
	// The Maestro's 14-bit target field in quarter microseconds.
	maestroMaxTarget = 1<<14 - 1
)

// Maestro drives one channel of a Pololu Maestro USB servo controller
// using its compact serial protocol.  The Maestro generates its own pulse
// train; the duty cycle is translated to a pulse width using frequencyHz.
type Maestro struct {
	mu      sync.Mutex
	port    io.WriteCloser
	channel byte
	freq    float64
}

// OpenMaestro opens the controller's command port.
func OpenMaestro(portName string, baud, channel int, frequencyHz float64) (*Maestro, error) {
	if portName == "" {
		return nil, fmt.Errorf("maestro: serial port not set")
	}
	if baud <= 0 {
		baud = maestroDefaultBaud
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("maestro: open %s: %w", portName, err)
	}
	m, err := NewMaestro(port, channel, frequencyHz)
	if err != nil {
		port.Close()
		return nil, err
	}
	return m, nil
}

// NewMaestro wraps an already open command stream.
func NewMaestro(w io.WriteCloser, channel int, frequencyHz float64) (*Maestro, error) {
	if channel < 0 || channel > 23 {
		return nil, fmt.Errorf("maestro: channel %d outside 0..23", channel)
	}
	return &Maestro{port: w, channel: byte(channel), freq: frequencyHz}, nil
}

// Apply implements Actuator.
func (m *Maestro) Apply(duty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(maestroTarget(duty, m.freq))
}

// Close stops pulses on the channel and closes the port.
func (m *Maestro) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.write(0)
	if cerr := m.port.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *Maestro) write(target uint16) error {
	if _, err := m.port.Write(maestroFrame(m.channel, target)); err != nil {
		return fmt.Errorf("maestro channel %d: %w", m.channel, err)
	}
	return nil
}

// maestroTarget converts percent of a frequencyHz frame into quarter
// microseconds.
func maestroTarget(duty, frequencyHz float64) uint16 {
	if frequencyHz <= 0 {
		return 0
	}
	us := clampDuty(duty) / 100 * 1e6 / frequencyHz
	return uint16(min(math.Round(us*4), maestroMaxTarget))
}

// maestroFrame encodes a Set Target command.
func maestroFrame(channel byte, target uint16) []byte {
	return []byte{maestroSetTarget, channel, byte(target & 0x7f), byte(target >> 7 & 0x7f)}
}
