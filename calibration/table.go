// Package calibration maps commanded servo positions (degrees) to calibrated
// actuation values (PWM duty-cycle percent) and converts those values into
// the units an actuator driver expects.
//
// A Table is a sparse set of measured points.  Lookups between points are
// linearly interpolated and lookups outside the measured range are clamped to
// the nearest end point, so a caller always gets a defined command.
package calibration

import (
	"sort"
	"sync"
)

// DefaultFallback is the value returned by an empty table: the standard
// 90° duty cycle for a 50 Hz hobby servo (1.5 ms of a 20 ms frame).
const DefaultFallback = 7.5

// Point is one calibrated sample.
type Point struct {
	Position float64 `json:"position" yaml:"position"`
	Value    float64 `json:"value" yaml:"value"`
}

// Table is an editable calibration table.  It is safe for concurrent use:
// mutations are serialized behind a write lock and readers interpolate on a
// snapshot so arithmetic never runs while the lock is held.
type Table struct {
	mu       sync.RWMutex
	points   []Point // sorted by Position, positions unique
	fallback float64
}

// Option configures a Table.
type Option func(*Table)

// WithFallback sets the value Interpolate returns when the table is empty.
func WithFallback(v float64) Option {
	return func(t *Table) { t.fallback = v }
}

// NewTable builds a table from points in any order.  A later point with the
// same position as an earlier one wins.
func NewTable(points []Point, opts ...Option) *Table {
	t := &Table{fallback: DefaultFallback}
	for _, o := range opts {
		o(t)
	}
	for _, p := range points {
		t.set(p.Position, p.Value)
	}
	return t
}

// Reference returns the table measured on the bench SG90 wired to GPIO 13.
func Reference() *Table {
	return NewTable([]Point{
		{0, 12.60},
		{45, 11.00},
		{90, 7.30},
		{135, 4.50},
		{180, 2.20},
	})
}

// Set inserts the point at position or overwrites its value.
func (t *Table) Set(position, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(position, value)
}

func (t *Table) set(position, value float64) {
	i := sort.Search(len(t.points), func(i int) bool { return t.points[i].Position >= position })
	if i < len(t.points) && t.points[i].Position == position {
		t.points[i].Value = value
		return
	}
	t.points = append(t.points, Point{})
	copy(t.points[i+1:], t.points[i:])
	t.points[i] = Point{Position: position, Value: value}
}

// Merge applies every update as a Set under a single lock.
func (t *Table) Merge(updates map[float64]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pos, v := range updates {
		t.set(pos, v)
	}
}

// Delete removes the point at position.  It reports whether it existed.
func (t *Table) Delete(position float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index(position)
	if !ok {
		return false
	}
	t.points = append(t.points[:i], t.points[i+1:]...)
	return true
}

// Remove deletes the point at position unless it is the last one left, in
// which case it returns ErrEmpty and the table is unchanged.  ok reports
// whether a point was stored at position.
func (t *Table) Remove(position float64) (ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index(position)
	if !ok {
		return false, nil
	}
	if len(t.points) == 1 {
		return true, ErrEmpty
	}
	t.points = append(t.points[:i], t.points[i+1:]...)
	return true, nil
}

// Get returns the value stored exactly at position.
func (t *Table) Get(position float64) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index(position)
	if !ok {
		return 0, false
	}
	return t.points[i].Value, true
}

func (t *Table) index(position float64) (int, bool) {
	i := sort.Search(len(t.points), func(i int) bool { return t.points[i].Position >= position })
	if i < len(t.points) && t.points[i].Position == position {
		return i, true
	}
	return i, false
}

// Interpolate returns the calibrated value for position.  See the package
// function Interpolate for the exact policy.
func (t *Table) Interpolate(position float64) float64 {
	t.mu.RLock()
	snap := make([]Point, len(t.points))
	copy(snap, t.points)
	fallback := t.fallback
	t.mu.RUnlock()
	return Interpolate(snap, position, fallback)
}

// Points returns a sorted copy of the table contents.
func (t *Table) Points() []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Len returns the number of stored points.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}

// Range returns the lowest and highest stored points.  ok is false for an
// empty table.
func (t *Table) Range() (lo, hi Point, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.points) == 0 {
		return Point{}, Point{}, false
	}
	return t.points[0], t.points[len(t.points)-1], true
}

// Fallback returns the value used for an empty table.
func (t *Table) Fallback() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fallback
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Table{fallback: t.fallback, points: make([]Point, len(t.points))}
	copy(c.points, t.points)
	return c
}

// Replace swaps the contents of t for those of other in one step.
func (t *Table) Replace(other *Table) {
	pts := other.Points()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = pts
}
