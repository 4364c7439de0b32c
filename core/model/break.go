package model

// BreakType distinguishes driving interruptions from rest periods.
type BreakType int

const (
	BreakShort BreakType = iota
	BreakLong
)

// NumBreakTypes is the number of break categories.
const NumBreakTypes = 2

// BreakTypes lists all break categories in output order.
var BreakTypes = []BreakType{BreakShort, BreakLong}

// Valid reports whether t is a known category.
func (t BreakType) Valid() bool { return t >= 0 && int(t) < NumBreakTypes }

// String returns the label used in exports.
func (t BreakType) String() string {
	switch t {
	case BreakShort:
		return "short"
	case BreakLong:
		return "long"
	default:
		return "unknown"
	}
}

// ParseBreakType is the inverse of String.
func ParseBreakType(s string) (BreakType, bool) {
	switch s {
	case "short":
		return BreakShort, true
	case "long":
		return BreakLong, true
	default:
		return 0, false
	}
}

// BreakEvent is a regulatory stop synthesized along a trip.
type BreakEvent struct {
	TripID   int64
	Seq      int // 1-based position within the trip
	Type     BreakType
	Coord    Coordinate
	PathKm   float64 // distance from the start of the edge path
	DrivenKm float64 // distance including the origin offset
	EdgeID   int64
	Driver   DriverMode
	Weight   float64
}
