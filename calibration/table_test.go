package calibration

import (
	"errors"
	"math"
	"sync"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestReferenceTableScenario(t *testing.T) {
	tbl := Reference()

	tests := []struct {
		name     string
		position float64
		want     float64
	}{
		{"low end", 0, 12.60},
		{"high end", 180, 2.20},
		{"midpoint of first segment", 22.5, 11.80},
		{"exact interior point", 90, 7.30},
		{"clamp low", -10, 12.60},
		{"clamp high", 200, 2.20},
		{"three quarters of last segment", 168.75, 4.50 + 0.75*(2.20-4.50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.Interpolate(tt.position); !near(got, tt.want) {
				t.Fatalf("Interpolate(%v) = %v, want %v", tt.position, got, tt.want)
			}
		})
	}
}

func TestInterpolateEmptyTableReturnsFallback(t *testing.T) {
	tbl := NewTable(nil)
	for _, p := range []float64{-1, 0, 90, 180, 1e9, math.NaN()} {
		if got := tbl.Interpolate(p); got != DefaultFallback {
			t.Fatalf("Interpolate(%v) on empty table = %v, want %v", p, got, DefaultFallback)
		}
	}

	custom := NewTable(nil, WithFallback(7.3))
	if got := custom.Interpolate(45); got != 7.3 {
		t.Fatalf("custom fallback = %v, want 7.3", got)
	}
}

func TestInterpolateSinglePoint(t *testing.T) {
	tbl := NewTable([]Point{{90, 7.3}})
	for _, p := range []float64{-5, 0, 90, 135, 400} {
		if got := tbl.Interpolate(p); got != 7.3 {
			t.Fatalf("Interpolate(%v) = %v, want 7.3", p, got)
		}
	}
}

func TestInterpolateMatchesGetForStoredPoints(t *testing.T) {
	tbl := NewTable([]Point{{0, 12.5}, {15, 11.9}, {30, 11.1}, {75.5, 9.0}, {120, 5.8}, {180, 2.4}})
	for _, p := range tbl.Points() {
		got, ok := tbl.Get(p.Position)
		if !ok {
			t.Fatalf("Get(%v) not found", p.Position)
		}
		if interp := tbl.Interpolate(p.Position); interp != got {
			t.Fatalf("Interpolate(%v) = %v, Get = %v", p.Position, interp, got)
		}
	}
}

func TestInterpolateMonotonic(t *testing.T) {
	tbl := Reference() // values strictly decreasing with angle
	prev := math.Inf(1)
	for p := -20.0; p <= 200; p += 0.25 {
		v := tbl.Interpolate(p)
		if v > prev {
			t.Fatalf("not monotonic at %v: %v > %v", p, v, prev)
		}
		prev = v
	}

	inc := NewTable([]Point{{0, 2.5}, {60, 5}, {120, 9}, {180, 12.5}})
	prev = math.Inf(-1)
	for p := -20.0; p <= 200; p += 0.25 {
		v := inc.Interpolate(p)
		if v < prev {
			t.Fatalf("not monotonic at %v: %v < %v", p, v, prev)
		}
		prev = v
	}
}

func TestInterpolateIdempotent(t *testing.T) {
	tbl := Reference()
	before := tbl.Points()
	first := tbl.Interpolate(100)
	for i := 0; i < 10; i++ {
		if got := tbl.Interpolate(100); got != first {
			t.Fatalf("call %d returned %v, first call %v", i, got, first)
		}
	}
	after := tbl.Points()
	if len(before) != len(after) {
		t.Fatalf("table size changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("point %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestSetKeepsOrderAndOverwrites(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Set(90, 7.5)
	tbl.Set(0, 12.5)
	tbl.Set(180, 2.5)
	tbl.Set(45, 10)
	tbl.Set(90, 7.3)

	pts := tbl.Points()
	wantPos := []float64{0, 45, 90, 180}
	if len(pts) != len(wantPos) {
		t.Fatalf("len = %d, want %d", len(pts), len(wantPos))
	}
	for i, p := range pts {
		if p.Position != wantPos[i] {
			t.Fatalf("points[%d].Position = %v, want %v", i, p.Position, wantPos[i])
		}
	}
	if v, _ := tbl.Get(90); v != 7.3 {
		t.Fatalf("Get(90) = %v, want overwritten 7.3", v)
	}
	if _, ok := tbl.Get(46); ok {
		t.Fatal("Get(46) found a point that was never set")
	}
}

func TestNewTableLastDuplicateWins(t *testing.T) {
	tbl := NewTable([]Point{{90, 7.5}, {0, 12}, {90, 7.2}})
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	if v, _ := tbl.Get(90); v != 7.2 {
		t.Fatalf("Get(90) = %v, want 7.2", v)
	}
}

func TestDeleteAndRange(t *testing.T) {
	tbl := Reference()
	if !tbl.Delete(0) {
		t.Fatal("Delete(0) = false")
	}
	if tbl.Delete(0) {
		t.Fatal("second Delete(0) = true")
	}
	lo, hi, ok := tbl.Range()
	if !ok || lo.Position != 45 || hi.Position != 180 {
		t.Fatalf("Range = %+v %+v %v", lo, hi, ok)
	}
	// below the new minimum clamps to the 45° value
	if got := tbl.Interpolate(10); got != 11.00 {
		t.Fatalf("Interpolate(10) = %v, want 11.00", got)
	}

	if _, _, ok := NewTable(nil).Range(); ok {
		t.Fatal("Range on empty table reported ok")
	}
}

func TestRemoveKeepsLastPoint(t *testing.T) {
	tbl := NewTable([]Point{{0, 12.6}, {180, 2.2}})
	if ok, err := tbl.Remove(90); ok || err != nil {
		t.Fatalf("Remove(90) = %v, %v; want false, nil", ok, err)
	}
	if ok, err := tbl.Remove(0); !ok || err != nil {
		t.Fatalf("Remove(0) = %v, %v", ok, err)
	}
	ok, err := tbl.Remove(180)
	if !ok || !errors.Is(err, ErrEmpty) {
		t.Fatalf("Remove(180) = %v, %v; want true, ErrEmpty", ok, err)
	}
	if v, found := tbl.Get(180); !found || v != 2.2 {
		t.Fatalf("last point dropped: Get(180) = %v, %v", v, found)
	}
}

func TestMergeAndReplace(t *testing.T) {
	tbl := Reference()
	tbl.Merge(map[float64]float64{90: 7.1, 100: 6.5})
	if v, _ := tbl.Get(90); v != 7.1 {
		t.Fatalf("Get(90) = %v, want 7.1", v)
	}
	if v, _ := tbl.Get(100); v != 6.5 {
		t.Fatalf("Get(100) = %v, want 6.5", v)
	}

	other := NewTable([]Point{{10, 3}})
	tbl.Replace(other)
	if tbl.Len() != 1 {
		t.Fatalf("Len after Replace = %d", tbl.Len())
	}
	other.Set(20, 4)
	if tbl.Len() != 1 {
		t.Fatal("Replace shares storage with its source")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := Reference()
	c := tbl.Clone()
	c.Set(90, 1.5)
	if v, _ := tbl.Get(90); v != 7.30 {
		t.Fatalf("original changed to %v", v)
	}
	if c.Fallback() != tbl.Fallback() {
		t.Fatal("clone lost fallback")
	}
}

func TestConcurrentSetAndInterpolate(t *testing.T) {
	tbl := Reference()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tbl.Set(float64((i*7+w)%181), 2.2+float64(i%100)/10)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := tbl.Interpolate(float64(i % 200))
				if math.IsNaN(v) {
					t.Errorf("Interpolate returned NaN")
					return
				}
			}
		}()
	}
	wg.Wait()

	pts := tbl.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i-1].Position >= pts[i].Position {
			t.Fatalf("points out of order at %d: %v >= %v", i, pts[i-1].Position, pts[i].Position)
		}
	}
}

func TestStandardDuty(t *testing.T) {
	if got := StandardDuty(0); got != 12.5 {
		t.Fatalf("StandardDuty(0) = %v", got)
	}
	if got := StandardDuty(90); got != 7.5 {
		t.Fatalf("StandardDuty(90) = %v", got)
	}
	if got := StandardDuty(180); got != 2.5 {
		t.Fatalf("StandardDuty(180) = %v", got)
	}
	angles := StandardAngles()
	if len(angles) != 13 || angles[0] != 0 || angles[12] != 180 {
		t.Fatalf("StandardAngles = %v", angles)
	}
}
