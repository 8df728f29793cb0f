package main

import (
	"context"
	"sync"
	"time"

	"servopi/actuator"
)

// LED is a PWM-dimmed indicator.  Brightness is a percentage and maps
// directly onto duty cycle.
type LED struct {
	mu         sync.Mutex
	out        actuator.Actuator
	pin        int
	brightness int
}

// NewLED wraps out.  The LED starts off.
func NewLED(out actuator.Actuator, pin int) *LED {
	return &LED{out: out, pin: pin}
}

// Pin returns the LED's output pin.
func (l *LED) Pin() int { return l.pin }

// SetBrightness clamps b to 0..100 and applies it.  It returns the applied
// value.
func (l *LED) SetBrightness(b int) (int, error) {
	b = max(0, min(100, b))
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.out.Apply(float64(b)); err != nil {
		return l.brightness, err
	}
	l.brightness = b
	return b, nil
}

// Brightness returns the current brightness.
func (l *LED) Brightness() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.brightness
}

// Blink flashes the LED fully on and off times times, spending half of
// period in each state, then restores the previous brightness.
func (l *LED) Blink(ctx context.Context, times int, period time.Duration) error {
	prev := l.Brightness()
	var err error
	for i := 0; i < times && err == nil; i++ {
		if _, err = l.SetBrightness(100); err != nil {
			break
		}
		if err = sleepCtx(ctx, period/2); err != nil {
			break
		}
		if _, err = l.SetBrightness(0); err != nil {
			break
		}
		err = sleepCtx(ctx, period/2)
	}
	if _, rerr := l.SetBrightness(prev); err == nil {
		err = rerr
	}
	return err
}

// Close turns the LED off and releases its driver.
func (l *LED) Close() error {
	_, err := l.SetBrightness(0)
	if cerr := l.out.Close(); err == nil {
		err = cerr
	}
	return err
}
