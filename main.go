package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servopi/actuator"
	"servopi/calibration"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// Entry point for the servopi web control daemon.
func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath, "Path to config.yaml (created with defaults if missing)")
		logLevelStr = flag.String("log-level", "", "Override log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("servopi", version)
		return
	}

	cfgMgr := NewConfigManager(*configPath)
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := cfgMgr.Get()
	if *logLevelStr != "" {
		cfg.LogLevel = *logLevelStr
	}
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := setupLogger(level)
	slog.SetDefault(logger)

	if err := initGPIO(); err != nil {
		logger.Error("gpio init failed", "error", err)
		os.Exit(1)
	}
	servo, led, err := openHardware(cfg, logger)
	if err != nil {
		logger.Error("hardware init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := servo.SetAngle(ctx, cfg.Servo.StartAngle); err != nil {
		logger.Warn("initial move failed", "angle", cfg.Servo.StartAngle, "error", err)
	}

	server := NewServer(cfgMgr, servo, led, logger)
	logger.Info("servopi starting",
		"version", version,
		"servo_pin", cfg.Servo.Pin,
		"servo_driver", cfg.Servo.Driver,
		"led_enabled", led != nil,
		"pir_enabled", cfg.PIR.Enabled,
		"calibration_points", servo.Table().Len())
	serveErr := server.Start(ctx)
	stop()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	shutdownHardware(cleanupCtx, servo, led, logger)

	if serveErr != nil {
		logger.Error("server exited", "error", serveErr)
		os.Exit(1)
	}
	logger.Info("servopi stopped")
}

// loadCalibration reads the servo's calibration file.  A missing file is
// not an error: the reference table is used until the first save.
func loadCalibration(path string, limits calibration.Limits, logger *slog.Logger) (*calibration.Table, error) {
	f, err := calibration.LoadFile(path, limits)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("calibration file not found, using reference table", "path", path)
		return calibration.Reference(), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("calibration loaded", "path", path, "points", len(f.Points), "saved", f.Timestamp)
	return f.Table(), nil
}

// openHardware builds the servo and, when enabled, the LED.  The returned
// LED is nil when disabled.
func openHardware(cfg Config, logger *slog.Logger) (*Servo, *LED, error) {
	table, err := loadCalibration(cfg.Servo.CalibrationFile, cfg.Limits(), logger)
	if err != nil {
		return nil, nil, err
	}
	adapter := calibration.AdapterFor(table).WithFrequency(cfg.Servo.FrequencyHz)
	if adapter.MinPulseMs < cfg.Servo.MinPulseMs || adapter.MaxPulseMs > cfg.Servo.MaxPulseMs {
		logger.Warn("calibration drives pulses outside the servo's rated range",
			"pulse_ms", fmt.Sprintf("%.3f..%.3f", adapter.MinPulseMs, adapter.MaxPulseMs),
			"rated_ms", fmt.Sprintf("%g..%g", cfg.Servo.MinPulseMs, cfg.Servo.MaxPulseMs))
	}

	out, err := actuator.Open(cfg.Servo.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("servo: %w", err)
	}
	settle := time.Duration(cfg.Servo.SettleMs) * time.Millisecond
	servo := NewServo(table, adapter, out, cfg.Servo.Pin, settle)

	if !cfg.LED.Enabled {
		return servo, nil, nil
	}
	ledOut, err := actuator.Open(cfg.LED.Config)
	if err != nil {
		_ = out.Close()
		return nil, nil, fmt.Errorf("led: %w", err)
	}
	return servo, NewLED(ledOut, cfg.LED.Pin), nil
}

// shutdownHardware turns the LED off, centers the servo and releases both
// drivers.
func shutdownHardware(ctx context.Context, servo *Servo, led *LED, logger *slog.Logger) {
	if led != nil {
		if err := led.Close(); err != nil {
			logger.Warn("led cleanup failed", "error", err)
		}
	}
	if err := servo.Close(ctx); err != nil {
		logger.Warn("servo cleanup failed", "error", err)
	}
}
