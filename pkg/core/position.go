package core

import "math"

// Position is a point in world coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// DistanceTo returns the euclidean distance between p and o.
func (p Position) DistanceTo(o Position) float64 {
	dx, dy, dz := o.X-p.X, o.Y-p.Y, o.Z-p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// WithinBox reports whether o lies within radius of p on every axis.
func (p Position) WithinBox(o Position, radius float64) bool {
	return math.Abs(o.X-p.X) <= radius &&
		math.Abs(o.Y-p.Y) <= radius &&
		math.Abs(o.Z-p.Z) <= radius
}

// Bearing returns the horizontal angle from `from` to `to` relative to a
// viewer facing yaw degrees. 0 is straight ahead, values grow clockwise and
// are normalized to [0, 360).
func Bearing(from, to Position, yaw float64) float64 {
	angle := math.Atan2(to.Z-from.Z, to.X-from.X) * 180 / math.Pi
	rel := math.Mod(angle-yaw+90, 360)
	if rel < 0 {
		rel += 360
	}
	return rel
}
