package actuator

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMPin drives a GPIO line with the SoC's PWM through periph.  On a
// Raspberry Pi hardware PWM is available on BCM 12, 13, 18 and 19; other
// pins fall back to whatever periph's host driver provides.
type PWMPin struct {
	mu   sync.Mutex
	pin  gpio.PinIO
	freq physic.Frequency
}

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// OpenPWMPin initialises periph and looks up BCM pin.
func OpenPWMPin(pin int, frequencyHz float64) (*PWMPin, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio: no pin %s", name)
	}
	return &PWMPin{pin: p, freq: hzToFrequency(frequencyHz)}, nil
}

// Apply implements Actuator.
func (p *PWMPin) Apply(duty float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pin.PWM(toGPIODuty(duty), p.freq); err != nil {
		return fmt.Errorf("gpio %s: %w", p.pin.Name(), err)
	}
	return nil
}

// Close stops the PWM output and drives the line low.
func (p *PWMPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pin.Halt(); err != nil {
		return err
	}
	return p.pin.Out(gpio.Low)
}

// toGPIODuty converts percent to periph's fixed-point duty.
func toGPIODuty(duty float64) gpio.Duty {
	return gpio.Duty(math.Round(clampDuty(duty) / 100 * float64(gpio.DutyMax)))
}

func hzToFrequency(hz float64) physic.Frequency {
	return physic.Frequency(math.Round(hz * float64(physic.Hertz)))
}
