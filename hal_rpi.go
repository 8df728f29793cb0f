//go:build linux && (arm || arm64) && !disablegpio

// This file provides the Raspberry Pi implementation of the HAL using
// periph.io.  When building elsewhere, or with the "disablegpio" tag,
// hal.go is used instead.

package main

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"servopi/actuator"
)

// defaultDriver is the actuator driver written into a fresh config.
const defaultDriver = actuator.DriverGPIO

// readPin reads the specified GPIO pin and returns true if the voltage level
// is high.  If the pin name is invalid it returns false.  Pins are addressed
// by their BCM numbers.
func readPin(pin int) bool {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return false
	}
	return p.Read() == gpio.High
}

// initGPIO initialises periph host state.  Returning an error here prevents the daemon from starting.
func initGPIO() error {
	_, err := host.Init()
	return err
}

// configureInput puts pin into input mode with a pull-down so a floating
// PIR output reads low.
func configureInput(pin int) error {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return fmt.Errorf("no such pin GPIO%d", pin)
	}
	return p.In(gpio.PullDown, gpio.NoEdge)
}
