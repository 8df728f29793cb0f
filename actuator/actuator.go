// Package actuator drives PWM outputs.  Every driver accepts a duty cycle in
// percent of the PWM period and converts it to whatever its hardware expects.
package actuator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDriver is returned by Open for an unrecognised driver name.
var ErrUnknownDriver = errors.New("unknown actuator driver")

// Actuator applies duty-cycle commands to a physical output.
type Actuator interface {
	// Apply sets the output to duty percent of the PWM period.  Values
	// outside 0..100 are clamped.
	Apply(duty float64) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverGPIO    = "gpio"
	DriverPCA9685 = "pca9685"
	DriverMaestro = "maestro"
	DriverSim     = "sim"
)

// Config selects and parameterises a driver.  Only the fields relevant to
// the chosen driver are read.
type Config struct {
	Driver      string  `yaml:"driver"`
	Pin         int     `yaml:"pin"`          // BCM number for gpio, channel for pca9685 and maestro
	FrequencyHz float64 `yaml:"frequency_hz"` // PWM frame rate
	I2CBus      string  `yaml:"i2c_bus,omitempty"`
	I2CAddr     uint16  `yaml:"i2c_addr,omitempty"`
	SerialPort  string  `yaml:"serial_port,omitempty"`
	BaudRate    int     `yaml:"baud_rate,omitempty"`
}

// Open returns the driver named by cfg.Driver.
func Open(cfg Config) (Actuator, error) {
	if cfg.FrequencyHz <= 0 {
		return nil, fmt.Errorf("actuator: frequency must be > 0, got %v", cfg.FrequencyHz)
	}
	var (
		a   Actuator
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case DriverGPIO:
		a, err = OpenPWMPin(cfg.Pin, cfg.FrequencyHz)
	case DriverPCA9685:
		a, err = OpenPCA9685(cfg.I2CBus, cfg.I2CAddr, cfg.Pin, cfg.FrequencyHz)
	case DriverMaestro:
		a, err = OpenMaestro(cfg.SerialPort, cfg.BaudRate, cfg.Pin, cfg.FrequencyHz)
	case DriverSim, "":
		a = NewSimulated()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// clampDuty limits duty to 0..100.
func clampDuty(duty float64) float64 {
	if duty != duty {
		return 0
	}
	return max(0, min(100, duty))
}
