package actuator

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/pca9685"
)

const (
	// pca9685Steps is the resolution of one PCA9685 PWM period.
	pca9685Steps = 4096
	// pca9685Addr is the board's address with all solder jumpers open.
	pca9685Addr uint16 = 0x40
)

// PCA9685 drives one channel of a PCA9685 16-channel PWM board over I2C.
type PCA9685 struct {
	mu      sync.Mutex
	bus     i2c.BusCloser
	dev     *pca9685.Dev
	channel int
}

// OpenPCA9685 opens busName (empty for the first bus) and configures the
// board at addr (0 for the default 0x40) to run at frequencyHz.
func OpenPCA9685(busName string, addr uint16, channel int, frequencyHz float64) (*PCA9685, error) {
	if channel < 0 || channel > 15 {
		return nil, fmt.Errorf("pca9685: channel %d outside 0..15", channel)
	}
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("pca9685: open i2c %q: %w", busName, err)
	}
	if addr == 0 {
		addr = pca9685Addr
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: %w", err)
	}
	if err := dev.SetPwmFreq(hzToFrequency(frequencyHz)); err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: set frequency: %w", err)
	}
	return &PCA9685{bus: bus, dev: dev, channel: channel}, nil
}

// Apply implements Actuator.
func (p *PCA9685) Apply(duty float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dev.SetPwm(p.channel, 0, pca9685Count(duty)); err != nil {
		return fmt.Errorf("pca9685 channel %d: %w", p.channel, err)
	}
	return nil
}

// Close turns the channel off and releases the bus.
func (p *PCA9685) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.dev.SetPwm(p.channel, 0, 0)
	if cerr := p.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

// pca9685Count converts percent into the 12-bit off count, turning on at 0.
func pca9685Count(duty float64) gpio.Duty {
	c := math.Round(clampDuty(duty) / 100 * pca9685Steps)
	return gpio.Duty(min(c, pca9685Steps-1))
}
