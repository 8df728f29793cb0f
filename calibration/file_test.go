package calibration

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileRoundTrip(t *testing.T) {
	tbl := NewTable([]Point{
		{0, 12.6}, {15, 12.05}, {22.5, 11.8}, {90, 7.3}, {0.1 + 0.2, 12.599999999999998}, {180, 2.2},
	})
	f := NewFile(tbl, 13, 50, "bench SG90")

	path := filepath.Join(t.TempDir(), "cal.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFile(path, DefaultLimits)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := tbl.Points()
	if len(got.Points) != len(want) {
		t.Fatalf("loaded %d points, want %d", len(got.Points), len(want))
	}
	for i := range want {
		if got.Points[i] != want[i] {
			t.Fatalf("point %d = %+v, want %+v", i, got.Points[i], want[i])
		}
	}
	if got.Pin != 13 || got.FrequencyHz != 50 || got.Notes != "bench SG90" {
		t.Fatalf("metadata = %d %v %q", got.Pin, got.FrequencyHz, got.Notes)
	}
	if !got.Timestamp.Equal(f.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, f.Timestamp)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestFileReadsBenchFormat(t *testing.T) {
	// written by the original calibration script: string keys, naive timestamp
	const raw = `{
  "timestamp": "2024-05-01T14:03:22.518233",
  "servo_pin": 13,
  "pwm_frequency": 50,
  "calibration_data": {"0": 12.6, "45": 11.0, "90": 7.3, "135": 4.5, "180": 2.2},
  "notes": "angle -> duty cycle (%)"
}`
	var f File
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := f.Validate(DefaultLimits); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.Timestamp.Year() != 2024 || f.Timestamp.Second() != 22 {
		t.Fatalf("timestamp = %v", f.Timestamp)
	}
	tbl := f.Table()
	if got := tbl.Interpolate(22.5); !near(got, 11.8) {
		t.Fatalf("Interpolate(22.5) = %v", got)
	}
}

func TestFileMarshalUsesCompactKeys(t *testing.T) {
	f := File{Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Points: []Point{{90, 7.3}, {22.5, 11.8}}}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"90":7.3`, `"22.5":11.8`, `"timestamp":"2025-01-02T03:04:05Z"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoded file %s missing %s", s, want)
		}
	}
}

func TestLoadFileRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"no points", `{"servo_pin":13,"calibration_data":{}}`, ErrEmpty},
		{"missing points", `{"servo_pin":13}`, ErrEmpty},
		{"non-numeric key", `{"calibration_data":{"ninety":7.3}}`, ErrInvalidPoint},
		{"non-numeric value", `{"calibration_data":{"90":"7.3"}}`, ErrInvalidPoint},
		{"null value", `{"calibration_data":{"90":null,"0":12}}`, ErrInvalidPoint},
		{"duplicate position", `{"calibration_data":{"90":7.3,"90.0":7.4}}`, ErrInvalidPoint},
		{"repeated key", `{"calibration_data":{"90":7.3,"90":7.4}}`, ErrInvalidPoint},
		{"data not an object", `{"calibration_data":[7.3]}`, ErrInvalidPoint},
		{"value out of range", `{"calibration_data":{"90":70}}`, ErrInvalidPoint},
		{"position out of range", `{"calibration_data":{"270":7}}`, ErrInvalidPoint},
		{"not json", `angle_adjustments = {90: 0.1}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cal.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path, DefaultLimits)
			if err == nil {
				t.Fatal("LoadFile succeeded on malformed input")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFileRejectsNonNumbersUnderWideLimits(t *testing.T) {
	wide := Limits{MinPosition: 0, MaxPosition: 180, MinValue: 0, MaxValue: 100}
	for _, body := range []string{
		`{"calibration_data":{"0":null,"90":7.3}}`,
		`{"calibration_data":{"0":12.6,"90":7.3,"0":0}}`,
		`{"calibration_data":{"0":true,"90":7.3}}`,
	} {
		path := filepath.Join(t.TempDir(), "cal.json")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		f, err := LoadFile(path, wide)
		if !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("LoadFile(%s) = %v, %v; want ErrInvalidPoint", body, f.Points, err)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), DefaultLimits); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestDefaultFilename(t *testing.T) {
	ts := time.Date(2025, 3, 9, 18, 7, 5, 0, time.UTC)
	if got := DefaultFilename(ts); got != "servo_calibration_20250309_180705.json" {
		t.Fatalf("DefaultFilename = %q", got)
	}
}

func TestParseUpdates(t *testing.T) {
	u, err := ParseUpdates([]byte("90: 7.1\n22.5: 11.75\n"), DefaultLimits)
	if err != nil {
		t.Fatalf("ParseUpdates yaml: %v", err)
	}
	if u[90] != 7.1 || u[22.5] != 11.75 {
		t.Fatalf("updates = %v", u)
	}

	u, err = ParseUpdates([]byte(`{"0": 12.4}`), DefaultLimits)
	if err != nil {
		t.Fatalf("ParseUpdates json: %v", err)
	}
	if u[0] != 12.4 {
		t.Fatalf("updates = %v", u)
	}

	bad := []string{
		"",
		"90: lots\n",
		"abc: 7\n",
		"90: 40\n",
		"90: .nan\n",
		"90: 7\n90.0: 7.1\n",
	}
	for _, b := range bad {
		if _, err := ParseUpdates([]byte(b), DefaultLimits); err == nil {
			t.Fatalf("ParseUpdates(%q) succeeded", b)
		}
	}
}
