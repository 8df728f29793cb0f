package calibration

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Updates is a batch of point edits keyed by position.
type Updates map[float64]float64

// ParseUpdates decodes a position -> value mapping.  YAML is accepted, which
// also covers JSON objects such as {"90": 7.3}.  Every entry is checked
// against limits before anything is returned, so a bad line rejects the
// whole batch.
func ParseUpdates(data []byte, limits Limits) (Updates, error) {
	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	out := make(Updates, len(raw))
	for key, v := range raw {
		pos, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: position %q is not a number", ErrInvalidPoint, key)
		}
		p := Point{Position: pos, Value: v}
		if err := limits.Check(p); err != nil {
			return nil, err
		}
		if _, dup := out[pos]; dup {
			return nil, fmt.Errorf("%w: position %v listed twice", ErrInvalidPoint, pos)
		}
		out[pos] = v
	}
	return out, nil
}

// LoadUpdates reads and parses an updates file.
func LoadUpdates(path string, limits Limits) (Updates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read updates: %w", err)
	}
	u, err := ParseUpdates(data, limits)
	if err != nil {
		return nil, fmt.Errorf("updates %s: %w", path, err)
	}
	return u, nil
}
