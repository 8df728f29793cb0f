package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"servopi/actuator"
)

// defaultConfigPath is the default filename for persisted configuration.
const defaultConfigPath = "config.yaml"

// ConfigManager wraps the loaded configuration and a mutex for concurrent access.
// When modifying configuration through the HTTP API, always go through
// Update so the change is persisted.
type ConfigManager struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	loaded bool
}

// NewConfigManager returns a manager backed by path.
func NewConfigManager(path string) *ConfigManager {
	if path == "" {
		path = defaultConfigPath
	}
	return &ConfigManager{path: path}
}

// DefaultConfig returns a fully-populated Config.  The servo sits on GPIO 13
// at 50 Hz, the LED on GPIO 26 and the PIR sensor on GPIO 17.
func DefaultConfig() Config {
	return Config{
		HTTPPort: 5000,
		Servo: ServoConfig{
			Config: actuator.Config{
				Driver:      defaultDriver,
				Pin:         13,
				FrequencyHz: 50,
			},
			CalibrationFile: "servo_calibration.json",
			MinPulseMs:      0.4,
			MaxPulseMs:      2.6,
			SettleMs:        800,
			StartAngle:      90,
		},
		LED: LEDConfig{
			Config: actuator.Config{
				Driver:      defaultDriver,
				Pin:         26,
				FrequencyHz: 1000,
			},
			Enabled: true,
		},
		PIR: PIRConfig{
			Enabled: false,
			Pin:     17,
			Mode:    "NO",
			PollMs:  200,
			HoldMs:  2000,
		},
		LogFile:  "events.log",
		LogLevel: "info",
		Alerts:   []AlertConfig{{Type: "log"}},
	}
}

// Load reads configuration from disk.  If the file does not exist, a default
// configuration is created with a single admin user (password: "admin", which
// you should change immediately) and persisted to disk.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	if cm.loaded {
		cm.mu.Unlock()
		return nil
	}
	data, err := os.ReadFile(cm.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Users = []User{
				{Username: "admin", PasswordHash: hashPassword("admin"), Admin: true},
			}
			cm.cfg = cfg
			cm.loaded = true
			// Save takes the read lock.
			cm.mu.Unlock()
			return cm.Save()
		}
		cm.mu.Unlock()
		return fmt.Errorf("unable to read config: %w", err)
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("invalid %s: %w", cm.path, err)
	}
	cm.cfg = cfg
	cm.loaded = true
	cm.mu.Unlock()
	return nil
}

// decodeConfig parses YAML on top of the defaults.  Unknown keys are
// rejected so typos surface at startup.
func decodeConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if c.Servo.FrequencyHz <= 0 {
		return errors.New("servo.frequency_hz must be > 0")
	}
	if c.Servo.MinPulseMs <= 0 || c.Servo.MaxPulseMs <= c.Servo.MinPulseMs {
		return errors.New("servo pulse range must satisfy 0 < min_pulse_ms < max_pulse_ms")
	}
	if c.Servo.SettleMs < 0 {
		return errors.New("servo.settle_ms must be >= 0")
	}
	if err := c.Limits().CheckPosition(c.Servo.StartAngle); err != nil {
		return fmt.Errorf("servo.start_angle: %w", err)
	}
	if c.LED.Enabled && c.LED.FrequencyHz <= 0 {
		return errors.New("led.frequency_hz must be > 0")
	}
	if c.PIR.Enabled {
		switch strings.ToUpper(c.PIR.Mode) {
		case "NO", "NC":
		default:
			return fmt.Errorf("pir.mode must be NO or NC, got %q", c.PIR.Mode)
		}
		if c.PIR.PollMs <= 0 {
			return errors.New("pir.poll_ms must be > 0")
		}
		if c.PIR.HoldMs < 0 {
			return errors.New("pir.hold_ms must be >= 0")
		}
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Save writes the configuration to disk.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := yaml.Marshal(cm.cfg)
	if err != nil {
		return err
	}
	tmpPath := cm.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, cm.path)
}

// Get returns a copy of the current configuration.  Callers must treat the
// returned Config as immutable.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// Update applies a user supplied function to modify the configuration.  It
// holds the write lock, calls the supplied function with a pointer to the
// internal config, and then persists the change.  The updater must not
// capture the pointer beyond the scope of the function.
func (cm *ConfigManager) Update(fn func(*Config) error) error {
	cm.mu.Lock()
	next := cm.cfg
	next.Users = append([]User(nil), cm.cfg.Users...)
	if err := fn(&next); err != nil {
		cm.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		cm.mu.Unlock()
		return err
	}
	cm.cfg = next
	// Save takes the read lock.
	cm.mu.Unlock()
	return cm.Save()
}

// FindUser returns a user and its index by username.  If not found, index
// will be -1.
func (cm *ConfigManager) FindUser(username string) (User, int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for i, u := range cm.cfg.Users {
		if u.Username == username {
			return u, i
		}
	}
	return User{}, -1
}

// Authenticate checks whether the provided username and password are valid.  It
// returns the user object if authentication succeeds.
func (cm *ConfigManager) Authenticate(username, password string) (User, error) {
	user, _ := cm.FindUser(username)
	if user.Username == "" {
		return User{}, errors.New("invalid credentials")
	}
	if err := checkPasswordHash(password, user.PasswordHash); err != nil {
		return User{}, errors.New("invalid credentials")
	}
	return user, nil
}
