package format

import (
	"math"
	"strconv"

	"github.com/relabs-tech/motion_sensors/internal/motion"
)

// Placeholder is rendered for values the platform could not provide.
const Placeholder = "–"

// Precision holds the number of decimals used per kind of field.
type Precision struct {
	Motion      int // acceleration and rotation rate axes
	Orientation int // alpha/beta/gamma
	Coordinate  int // latitude/longitude
	Accuracy    int
	Speed       int
}

// DefaultPrecision matches what the browser page showed.
var DefaultPrecision = Precision{
	Motion:      2,
	Orientation: 2,
	Coordinate:  6,
	Accuracy:    1,
	Speed:       2,
}

// For returns the decimals used for a reading category.
func (p Precision) For(c motion.Category) int {
	if c == motion.Orientation {
		return p.Orientation
	}
	return p.Motion
}

// Fixed renders v with digits decimals, or Placeholder when v is not finite.
func Fixed(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	if digits < 0 {
		digits = 0
	}
	return strconv.FormatFloat(v, 'f', digits, 64)
}

// Axes formats the three axes of r.
func Axes(r motion.Reading, digits int) [3]string {
	return [3]string{
		Fixed(r.X, digits),
		Fixed(r.Y, digits),
		Fixed(r.Z, digits),
	}
}
