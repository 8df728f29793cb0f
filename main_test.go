package main

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"servopi/actuator"
	"servopi/calibration"
)

func TestLoadCalibrationFallsBackToReference(t *testing.T) {
	tbl, err := loadCalibration(filepath.Join(t.TempDir(), "missing.json"), calibration.DefaultLimits, discardLogger())
	if err != nil {
		t.Fatalf("loadCalibration: %v", err)
	}
	if tbl.Len() != 5 || tbl.Interpolate(90) != 7.30 {
		t.Fatalf("got %v", tbl.Points())
	}
}

func TestLoadCalibrationReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	f := calibration.NewFile(calibration.NewTable([]calibration.Point{{Position: 0, Value: 12}, {Position: 180, Value: 3}}), 13, 50, "")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	tbl, err := loadCalibration(path, calibration.DefaultLimits, discardLogger())
	if err != nil {
		t.Fatalf("loadCalibration: %v", err)
	}
	if got := tbl.Interpolate(90); got != 7.5 {
		t.Fatalf("Interpolate(90) = %v, want 7.5", got)
	}
}

func TestOpenHardwareSimulated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servo.Driver = actuator.DriverSim
	cfg.Servo.CalibrationFile = filepath.Join(t.TempDir(), "none.json")
	cfg.Servo.SettleMs = 0
	cfg.LED.Driver = actuator.DriverSim

	servo, led, err := openHardware(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openHardware: %v", err)
	}
	if led == nil || led.Pin() != 26 {
		t.Fatalf("led = %+v", led)
	}
	a := servo.Adapter()
	if a.LowDuty != 2.20 || a.HighDuty != 12.60 || a.FrequencyHz != 50 {
		t.Fatalf("adapter = %+v", a)
	}
	if math.Abs(a.MinPulseMs-0.44) > 1e-9 || math.Abs(a.MaxPulseMs-2.52) > 1e-9 {
		t.Fatalf("adapter pulse bounds = %v..%v ms, want 0.44..2.52", a.MinPulseMs, a.MaxPulseMs)
	}
	shutdownHardware(context.Background(), servo, led, discardLogger())

	cfg.LED.Enabled = false
	_, led, err = openHardware(cfg, discardLogger())
	if err != nil || led != nil {
		t.Fatalf("disabled led = %v, %v", led, err)
	}

	cfg.Servo.Driver = "stepper"
	if _, _, err := openHardware(cfg, discardLogger()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
