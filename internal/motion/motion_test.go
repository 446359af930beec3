package motion

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryStringRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCategory("magnetic")
	assert.Error(t, err)
}

func TestAxis(t *testing.T) {
	v := 1.5
	inf := math.Inf(1)
	nan := math.NaN()

	assert.Equal(t, 1.5, Axis(&v))
	assert.True(t, math.IsNaN(Axis(nil)))
	assert.True(t, math.IsNaN(Axis(&inf)))
	assert.True(t, math.IsNaN(Axis(&nan)))
}

func TestReadingJSONUsesNullForUnavailableAxes(t *testing.T) {
	r := Reading{
		Category:   AngularMotion,
		X:          1.25,
		Y:          math.NaN(),
		Z:          -3,
		CapturedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"angular","x":1.25,"y":null,"z":-3,"captured_at":"2026-01-02T03:04:05Z"}`, string(b))

	var back Reading
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, AngularMotion, back.Category)
	assert.Equal(t, 1.25, back.X)
	assert.True(t, math.IsNaN(back.Y))
	assert.Equal(t, -3.0, back.Z)
	assert.True(t, r.CapturedAt.Equal(back.CapturedAt))
}

func TestStateAndBackendNames(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "requesting", Requesting.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "stopped", Stopped.String())

	assert.Equal(t, "unavailable", Unavailable.String())
	assert.Equal(t, "primary", Primary.String())
	assert.Equal(t, "fallback", Fallback.String())
}
