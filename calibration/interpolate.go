package calibration

import "sort"

// Interpolate answers a query against points, which must be sorted by
// position with unique positions.
//
// An exact hit returns the stored value.  Queries at or below the first
// position return the first value and queries at or above the last position
// return the last value; nothing is extrapolated.  Anything else is linearly
// interpolated between the two neighbouring points.  With no points the
// fallback is returned.  The result is not rounded.
func Interpolate(points []Point, position, fallback float64) float64 {
	n := len(points)
	if n == 0 {
		return fallback
	}

	// i is the first point at or above position.
	i := sort.Search(n, func(i int) bool { return points[i].Position >= position })
	if i < n && points[i].Position == position {
		return points[i].Value
	}
	if i == 0 {
		return points[0].Value
	}
	if i == n {
		return points[n-1].Value
	}

	lo, hi := points[i-1], points[i]
	ratio := (position - lo.Position) / (hi.Position - lo.Position)
	return lo.Value + ratio*(hi.Value-lo.Value)
}

// StandardDuty is the uncalibrated duty cycle for angle on a 50 Hz servo
// spanning 2.5%..12.5%, with 0° at the long-pulse end.
func StandardDuty(angle float64) float64 {
	return 2.5 + (180-angle)/180*10
}

// StandardAngles are the positions the calibration tool measures.
func StandardAngles() []float64 {
	out := make([]float64, 0, 13)
	for a := 0; a <= 180; a += 15 {
		out = append(out, float64(a))
	}
	return out
}
