package main

import (
	"servopi/actuator"
	"servopi/calibration"
)

// User represents an account that can log in to the web UI.
// Passwords are stored as bcrypt hashes.  The Admin flag indicates
// whether the user may edit and save the calibration table.
type User struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
	Admin        bool   `yaml:"admin" json:"admin"`
}

// ServoConfig wires the servo's output driver to its calibration.
type ServoConfig struct {
	actuator.Config `yaml:",inline"`

	// CalibrationFile is loaded at startup and written by
	// /api/calibration/save.  When it does not exist the reference table is
	// used until the first save.
	CalibrationFile string  `yaml:"calibration_file"`
	Notes           string  `yaml:"notes,omitempty"`
	// MinPulseMs and MaxPulseMs are the servo's rated pulse range.  A
	// calibration reaching outside it is reported at startup.
	MinPulseMs      float64 `yaml:"min_pulse_ms"`
	MaxPulseMs      float64 `yaml:"max_pulse_ms"`
	SettleMs        int     `yaml:"settle_ms"`
	StartAngle      float64 `yaml:"start_angle"`
}

// LEDConfig describes the dimmable indicator LED.
type LEDConfig struct {
	actuator.Config `yaml:",inline"`
	Enabled         bool `yaml:"enabled"`
}

// PIRConfig describes the passive infrared motion sensor input.
type PIRConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pin     int    `yaml:"pin"`     // BCM numbering
	Mode    string `yaml:"mode"`    // "NO" (high = motion) or "NC" (low = motion)
	PollMs  int    `yaml:"poll_ms"` // sampling interval
	HoldMs  int    `yaml:"hold_ms"` // input must stay idle this long before no_motion
}

// AlertConfig selects an alert handler fired on motion.  Type is "log" or
// "email"; the SMTP fields are only read for email.
type AlertConfig struct {
	Type       string `yaml:"type"`
	SMTPServer string `yaml:"smtp_server,omitempty"`
	SMTPPort   int    `yaml:"smtp_port,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	From       string `yaml:"from,omitempty"`
	To         string `yaml:"to,omitempty"`
	Subject    string `yaml:"subject,omitempty"`
}

// Config is the top-level structure serialized to config.yaml.  It holds
// all persisted daemon state except sessions and the calibration table,
// which lives in its own file.
type Config struct {
	HTTPPort int    `yaml:"http_port"`           // port to listen on (default 5000)
	CertFile string `yaml:"cert_file,omitempty"` // PEM certificate; plain HTTP when empty
	KeyFile  string `yaml:"key_file,omitempty"`  // PEM key

	Servo ServoConfig `yaml:"servo"`
	LED   LEDConfig   `yaml:"led"`
	PIR   PIRConfig   `yaml:"pir"`

	Users    []User        `yaml:"users"`
	Alerts   []AlertConfig `yaml:"alerts,omitempty"`
	LogFile  string        `yaml:"log_file"`
	LogLevel string        `yaml:"log_level"`
}

// Limits returns the calibration limits the daemon enforces on input.
func (c Config) Limits() calibration.Limits {
	return calibration.DefaultLimits
}
