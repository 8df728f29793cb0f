//go:build !linux || !(arm || arm64) || disablegpio

package main

// This file is the hardware abstraction layer for machines without a
// Raspberry Pi header.  Inputs read low and outputs default to the
// simulated driver so the daemon and web UI run on a desktop.

import "servopi/actuator"

// defaultDriver is the actuator driver written into a fresh config.
const defaultDriver = actuator.DriverSim

// readPin returns the logic level of the given GPIO pin.  Without hardware
// it is always low, so a normally-open PIR never reports motion.
func readPin(pin int) bool {
	return false
}

// initGPIO performs any global initialisation required to access GPIO pins.
func initGPIO() error {
	return nil
}

// configureInput is a no-op without hardware.
func configureInput(pin int) error {
	return nil
}
