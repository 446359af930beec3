package format

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_sensors/internal/motion"
)

func TestFixed(t *testing.T) {
	tests := []struct {
		input    float64
		digits   int
		expected string
	}{
		{3.14159, 2, "3.14"},
		{12.3456789, 6, "12.345679"},
		{-9.8, 2, "-9.80"},
		{0, 2, "0.00"},
		{12.34, 1, "12.3"},
		{7.6, 0, "8"},
		{7.6, -3, "8"},
		{math.NaN(), 2, Placeholder},
		{math.Inf(1), 2, Placeholder},
		{math.Inf(-1), 6, Placeholder},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Fixed(tt.input, tt.digits), "Fixed(%v, %d)", tt.input, tt.digits)
	}
}

func TestFixedNeverRendersNaNOrEmpty(t *testing.T) {
	got := Fixed(math.NaN(), 2)
	assert.NotEqual(t, "NaN", got)
	assert.NotEmpty(t, got)
}

func TestAxes(t *testing.T) {
	r := motion.Reading{Category: motion.LinearMotion, X: 0.1, Y: -9.8, Z: math.NaN(), CapturedAt: time.Now()}
	assert.Equal(t, [3]string{"0.10", "-9.80", Placeholder}, Axes(r, 2))
}

func TestPrecisionFor(t *testing.T) {
	p := DefaultPrecision
	p.Orientation = 1
	assert.Equal(t, 2, p.For(motion.LinearMotion))
	assert.Equal(t, 2, p.For(motion.AngularMotion))
	assert.Equal(t, 1, p.For(motion.Orientation))
}
