package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"servopi/actuator"
	"servopi/calibration"
)

// ErrAngleRange is returned for commanded angles outside the calibrated
// domain.  The interpolator itself clamps; rejecting here keeps a typo in a
// request from silently pinning the horn to an end stop.
var ErrAngleRange = errors.New("angle out of range")

// Servo owns one calibrated servo: its table, adapter, output driver and
// last commanded position.
type Servo struct {
	moveMu sync.Mutex // serializes moves and sweeps

	mu      sync.RWMutex
	angle   float64
	duty    float64
	moved   bool
	table   *calibration.Table
	adapter calibration.Adapter
	out     actuator.Actuator
	limits  calibration.Limits
	pin     int
	settle  time.Duration
}

// ServoStatus is a snapshot of the servo's last command.
type ServoStatus struct {
	Pin        int     `json:"servo_pin"`
	Angle      float64 `json:"servo_angle"`
	Duty       float64 `json:"duty_cycle"`
	Normalized float64 `json:"normalized"`
	PulseMs    float64 `json:"pulse_ms"`
	Moved      bool    `json:"moved"`
}

// NewServo builds a servo controller.  settle is how long each move waits
// for the horn to reach position.
func NewServo(table *calibration.Table, adapter calibration.Adapter, out actuator.Actuator, pin int, settle time.Duration) *Servo {
	return &Servo{
		table:   table,
		adapter: adapter,
		out:     out,
		limits:  calibration.DefaultLimits,
		pin:     pin,
		settle:  settle,
		angle:   90,
		duty:    table.Interpolate(90),
	}
}

// Table returns the live calibration table.  Edits take effect on the next
// move.
func (s *Servo) Table() *calibration.Table { return s.table }

// Adapter returns the servo's unit conversions.
func (s *Servo) Adapter() calibration.Adapter { return s.adapter }

// Pin returns the configured output pin or channel.
func (s *Servo) Pin() int { return s.pin }

// Lookup returns what a move to angle would command, without moving.
func (s *Servo) Lookup(angle float64) ServoStatus {
	duty := s.table.Interpolate(angle)
	return ServoStatus{
		Pin:        s.pin,
		Angle:      angle,
		Duty:       duty,
		Normalized: s.adapter.Normalized(duty),
		PulseMs:    calibration.DutyToPulseWidth(duty, s.adapter.FrequencyHz),
	}
}

// SetAngle moves to angle and waits for the servo to settle.  If ctx ends
// during the settle wait the move has still been applied and the returned
// status reflects it.
func (s *Servo) SetAngle(ctx context.Context, angle float64) (ServoStatus, error) {
	if err := s.limits.CheckPosition(angle); err != nil {
		return s.Status(), fmt.Errorf("%w: %v", ErrAngleRange, angle)
	}
	s.moveMu.Lock()
	defer s.moveMu.Unlock()
	return s.move(ctx, angle)
}

// Center moves to 90°.
func (s *Servo) Center(ctx context.Context) (ServoStatus, error) {
	return s.SetAngle(ctx, 90)
}

// Sweep visits each angle in turn, holding the servo for the whole path so
// no other move lands between steps.  onStep, if non-nil, is called after
// each step is applied.  It stops at the first error.
func (s *Servo) Sweep(ctx context.Context, angles []float64, onStep func(ServoStatus)) error {
	for _, a := range angles {
		if err := s.limits.CheckPosition(a); err != nil {
			return fmt.Errorf("%w: %v", ErrAngleRange, a)
		}
	}
	s.moveMu.Lock()
	defer s.moveMu.Unlock()
	for _, a := range angles {
		st, err := s.apply(a)
		if err != nil {
			return err
		}
		if onStep != nil {
			onStep(st)
		}
		if err := sleepCtx(ctx, s.settle); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDuty drives a raw duty cycle, bypassing the table.  Used while
// calibrating to find the duty that reaches a given angle.  The servo's
// recorded angle is left unchanged.
func (s *Servo) ApplyDuty(ctx context.Context, duty float64) error {
	if err := s.limits.CheckValue(duty); err != nil {
		return err
	}
	s.moveMu.Lock()
	defer s.moveMu.Unlock()
	if err := s.out.Apply(duty); err != nil {
		return fmt.Errorf("servo duty %v%%: %w", duty, err)
	}
	return sleepCtx(ctx, s.settle)
}

func (s *Servo) move(ctx context.Context, angle float64) (ServoStatus, error) {
	st, err := s.apply(angle)
	if err != nil {
		return st, err
	}
	return st, sleepCtx(ctx, s.settle)
}

// apply drives the interpolated duty for angle and records it.  s.moveMu
// must be held.
func (s *Servo) apply(angle float64) (ServoStatus, error) {
	duty := s.table.Interpolate(angle)
	if err := s.out.Apply(duty); err != nil {
		return s.Status(), fmt.Errorf("servo move to %v°: %w", angle, err)
	}
	s.mu.Lock()
	s.angle, s.duty, s.moved = angle, duty, true
	s.mu.Unlock()
	return s.Status(), nil
}

// Status returns the last commanded position.
func (s *Servo) Status() ServoStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ServoStatus{
		Pin:        s.pin,
		Angle:      s.angle,
		Duty:       s.duty,
		Normalized: s.adapter.Normalized(s.duty),
		PulseMs:    calibration.DutyToPulseWidth(s.duty, s.adapter.FrequencyHz),
		Moved:      s.moved,
	}
}

// Close centers the servo and releases its driver.
func (s *Servo) Close(ctx context.Context) error {
	_, err := s.Center(ctx)
	if cerr := s.out.Close(); err == nil {
		err = cerr
	}
	return err
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
