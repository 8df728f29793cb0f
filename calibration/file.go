package calibration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"
)

var (
	// ErrEmpty is returned when a calibration source holds no points.
	ErrEmpty = errors.New("calibration has no points")
	// ErrInvalidPoint is returned for non-numeric, non-finite or out of
	// range points.
	ErrInvalidPoint = errors.New("invalid calibration point")
)

// Limits bounds the positions and values a calibration may contain.
type Limits struct {
	MinPosition float64 `json:"min_position" yaml:"min_position"`
	MaxPosition float64 `json:"max_position" yaml:"max_position"`
	MinValue    float64 `json:"min_value" yaml:"min_value"`
	MaxValue    float64 `json:"max_value" yaml:"max_value"`
}

// DefaultLimits covers a 0..180° servo driven at 1..15% duty.
var DefaultLimits = Limits{MinPosition: 0, MaxPosition: 180, MinValue: 1.0, MaxValue: 15.0}

// CheckPosition reports whether position is finite and inside the domain.
func (l Limits) CheckPosition(position float64) error {
	if !finite(position) || position < l.MinPosition || position > l.MaxPosition {
		return fmt.Errorf("%w: position %v outside %v..%v", ErrInvalidPoint, position, l.MinPosition, l.MaxPosition)
	}
	return nil
}

// CheckValue reports whether value is finite and inside the codomain.
func (l Limits) CheckValue(value float64) error {
	if !finite(value) || value < l.MinValue || value > l.MaxValue {
		return fmt.Errorf("%w: value %v outside %v..%v", ErrInvalidPoint, value, l.MinValue, l.MaxValue)
	}
	return nil
}

// Check validates a whole point.
func (l Limits) Check(p Point) error {
	if err := l.CheckPosition(p.Position); err != nil {
		return err
	}
	return l.CheckValue(p.Value)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// File is the persisted form of a calibration session.  The JSON layout is
// shared with the calibration files written on the bench, where points are
// an object keyed by angle.
type File struct {
	Timestamp   time.Time `json:"timestamp"`
	Pin         int       `json:"servo_pin"`
	FrequencyHz float64   `json:"pwm_frequency"`
	Points      []Point   `json:"-"`
	Notes       string    `json:"notes"`
}

type fileJSON struct {
	Timestamp   string                     `json:"timestamp"`
	Pin         int                        `json:"servo_pin"`
	FrequencyHz float64                    `json:"pwm_frequency"`
	Data        map[string]json.RawMessage `json:"calibration_data"`
	Notes       string                     `json:"notes"`
}

// fileJSONIn mirrors fileJSON but keeps calibration_data in document order
// so repeated keys can be rejected.
type fileJSONIn struct {
	Timestamp   string    `json:"timestamp"`
	Pin         int       `json:"servo_pin"`
	FrequencyHz float64   `json:"pwm_frequency"`
	Data        pointData `json:"calibration_data"`
	Notes       string    `json:"notes"`
}

type rawPoint struct {
	key   string
	value json.RawMessage
}

// pointData is calibration_data as written, one entry per key.
type pointData []rawPoint

// UnmarshalJSON walks the object token by token; encoding/json would keep
// only the last of two identical keys.
func (d *pointData) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: calibration_data is not an object", ErrInvalidPoint)
	}
	seen := make(map[string]bool)
	var out pointData
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if seen[key] {
			return fmt.Errorf("%w: position %q listed twice", ErrInvalidPoint, key)
		}
		seen[key] = true
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, rawPoint{key: key, value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// timestamps written by older tooling carry no zone
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// NewFile snapshots table into a File stamped with the current time.
func NewFile(table *Table, pin int, frequencyHz float64, notes string) File {
	return File{
		Timestamp:   time.Now(),
		Pin:         pin,
		FrequencyHz: frequencyHz,
		Points:      table.Points(),
		Notes:       notes,
	}
}

// Table builds a Table from the file's points.
func (f File) Table(opts ...Option) *Table {
	return NewTable(f.Points, opts...)
}

// FormatPosition renders a position as a calibration_data key.  The
// shortest representation that parses back to the same float is used, so
// whole angles stay "90" rather than "90.0".
func FormatPosition(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (f File) MarshalJSON() ([]byte, error) {
	out := fileJSON{
		Timestamp:   f.Timestamp.Format(time.RFC3339Nano),
		Pin:         f.Pin,
		FrequencyHz: f.FrequencyHz,
		Data:        make(map[string]json.RawMessage, len(f.Points)),
		Notes:       f.Notes,
	}
	for _, p := range f.Points {
		if !finite(p.Position) || !finite(p.Value) {
			return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidPoint, p.Position, p.Value)
		}
		out.Data[FormatPosition(p.Position)] = json.RawMessage(strconv.FormatFloat(p.Value, 'g', -1, 64))
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.  Keys and values must both be
// numeric; the resulting points are sorted by position.
func (f *File) UnmarshalJSON(b []byte) error {
	var in fileJSONIn
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var ts time.Time
	if in.Timestamp != "" {
		var err error
		for _, layout := range timestampLayouts {
			if ts, err = time.Parse(layout, in.Timestamp); err == nil {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", in.Timestamp, err)
		}
	}
	points := make([]Point, 0, len(in.Data))
	for _, rp := range in.Data {
		pos, err := strconv.ParseFloat(rp.key, 64)
		if err != nil {
			return fmt.Errorf("%w: position %q is not a number", ErrInvalidPoint, rp.key)
		}
		var v *float64
		if err := json.Unmarshal(rp.value, &v); err != nil || v == nil {
			return fmt.Errorf("%w: value for %q is not a number: %s", ErrInvalidPoint, rp.key, rp.value)
		}
		points = append(points, Point{Position: pos, Value: *v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Position < points[j].Position })
	for i := 1; i < len(points); i++ {
		if points[i].Position == points[i-1].Position {
			return fmt.Errorf("%w: position %v listed twice", ErrInvalidPoint, points[i].Position)
		}
	}
	*f = File{
		Timestamp:   ts,
		Pin:         in.Pin,
		FrequencyHz: in.FrequencyHz,
		Points:      points,
		Notes:       in.Notes,
	}
	return nil
}

// Validate checks that the file holds at least one point and that every
// point lies within limits.
func (f File) Validate(limits Limits) error {
	if len(f.Points) == 0 {
		return ErrEmpty
	}
	for _, p := range f.Points {
		if err := limits.Check(p); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads and validates a calibration file.
func LoadFile(path string, limits Limits) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read calibration: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if err := f.Validate(limits); err != nil {
		return File{}, fmt.Errorf("calibration %s: %w", path, err)
	}
	return f, nil
}

// Save writes f as indented JSON.  The file is written next to path and
// renamed into place so a reader never sees a partial file.
func (f File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	return nil
}

// DefaultFilename is the timestamped name used when no path is given.
func DefaultFilename(t time.Time) string {
	return "servo_calibration_" + t.Format("20060102_150405") + ".json"
}
