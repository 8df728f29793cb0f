package calibration

// Normalized commands run from -1 to +1.  Throughout this package -1 is the
// low-duty end (shortest pulse) and +1 is the high-duty end (longest pulse).
// With the reference table the high-duty end is 0°, so 0° maps to +1 and
// 180° maps to -1.  Tables must keep that orientation: a larger value always
// means a longer pulse.

// Adapter describes how calibrated duty cycles map onto an actuator's raw
// command units.
type Adapter struct {
	LowDuty     float64 `json:"low_duty" yaml:"low_duty"`         // duty at normalized -1
	HighDuty    float64 `json:"high_duty" yaml:"high_duty"`       // duty at normalized +1
	MinPulseMs  float64 `json:"min_pulse_ms" yaml:"min_pulse_ms"` // pulse at normalized -1
	MaxPulseMs  float64 `json:"max_pulse_ms" yaml:"max_pulse_ms"` // pulse at normalized +1
	FrequencyHz float64 `json:"frequency_hz" yaml:"frequency_hz"`
}

// DefaultAdapter spans the reference table's duty range at 50 Hz.  Its pulse
// bounds are the widths of those duties, 0.44..2.52 ms.
var DefaultAdapter = Adapter{LowDuty: 2.20, HighDuty: 12.60}.WithFrequency(50)

// WithFrequency returns a copy of a running at frequencyHz, with MinPulseMs
// and MaxPulseMs set to the pulse widths of LowDuty and HighDuty in that
// frame.  PulseWidth then agrees with DutyToPulseWidth for any duty inside
// the range.  A non-positive frequency leaves a unchanged.
func (a Adapter) WithFrequency(frequencyHz float64) Adapter {
	if frequencyHz <= 0 {
		return a
	}
	a.FrequencyHz = frequencyHz
	a.MinPulseMs = DutyToPulseWidth(a.LowDuty, frequencyHz)
	a.MaxPulseMs = DutyToPulseWidth(a.HighDuty, frequencyHz)
	return a
}

// AdapterFor returns DefaultAdapter with its duty range fitted to the
// lowest and highest values in table and its pulse bounds derived from
// them.  An empty table, or one whose values are all equal, leaves the
// default range in place.
func AdapterFor(table *Table) Adapter {
	a := DefaultAdapter
	pts := table.Points()
	if len(pts) == 0 {
		return a
	}
	lo, hi := pts[0].Value, pts[0].Value
	for _, p := range pts[1:] {
		lo = min(lo, p.Value)
		hi = max(hi, p.Value)
	}
	if lo < hi {
		a.LowDuty, a.HighDuty = lo, hi
	}
	return a.WithFrequency(a.FrequencyHz)
}

// Normalized converts a duty cycle into a -1..+1 command.
func (a Adapter) Normalized(duty float64) float64 {
	return DutyToNormalized(duty, a.LowDuty, a.HighDuty)
}

// Duty converts a -1..+1 command back into a duty cycle.
func (a Adapter) Duty(normalized float64) float64 {
	return NormalizedToDuty(normalized, a.LowDuty, a.HighDuty)
}

// PulseWidth converts a duty cycle into the pulse width, in milliseconds,
// that a normalized-command actuator will emit for it.
func (a Adapter) PulseWidth(duty float64) float64 {
	return PulseWidthFromNormalized(a.Normalized(duty), a.MinPulseMs, a.MaxPulseMs)
}

// Clamp limits duty to the adapter's duty range.
func (a Adapter) Clamp(duty float64) float64 {
	lo, hi := a.LowDuty, a.HighDuty
	if lo > hi {
		lo, hi = hi, lo
	}
	return max(lo, min(hi, duty))
}

// DutyToNormalized rescales duty from lowDuty..highDuty onto -1..+1.  Values
// outside the range are clamped to -1 or +1.  A degenerate range maps
// everything to 0.
func DutyToNormalized(duty, lowDuty, highDuty float64) float64 {
	if highDuty == lowDuty {
		return 0
	}
	v := -1 + 2*(duty-lowDuty)/(highDuty-lowDuty)
	return clampUnit(v)
}

// NormalizedToDuty is the inverse of DutyToNormalized.
func NormalizedToDuty(v, lowDuty, highDuty float64) float64 {
	return lowDuty + (clampUnit(v)+1)/2*(highDuty-lowDuty)
}

// PulseWidthFromNormalized maps a -1..+1 command onto minPulseMs..maxPulseMs.
func PulseWidthFromNormalized(v, minPulseMs, maxPulseMs float64) float64 {
	return minPulseMs + (clampUnit(v)+1)/2*(maxPulseMs-minPulseMs)
}

// DutyToPulseWidth returns the pulse width in milliseconds of duty percent
// of a frequencyHz frame.
func DutyToPulseWidth(duty, frequencyHz float64) float64 {
	if frequencyHz <= 0 {
		return 0
	}
	return duty / 100 * 1000 / frequencyHz
}

// PulseWidthToDuty is the inverse of DutyToPulseWidth.
func PulseWidthToDuty(ms, frequencyHz float64) float64 {
	return ms * frequencyHz / 1000 * 100
}

func clampUnit(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	return max(-1, min(1, v))
}
