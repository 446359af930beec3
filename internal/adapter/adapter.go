// Package adapter maps the raw shapes delivered by each backend into
// motion.Reading values.
package adapter

import (
	"time"

	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// Normalize converts raw into a Reading for category c. The second result
// is false when raw carries nothing for c; callers must then emit nothing
// rather than repeat the previous reading.
//
// raw is a platform.Sensor for the Primary backend (values are read off the
// object at call time), a platform.MotionEvent for the Fallback backend, or a
// platform.OrientationEvent for Orientation with any backend.
func Normalize(c motion.Category, b motion.Backend, raw any, at time.Time) (motion.Reading, bool) {
	if c == motion.Orientation {
		ev, ok := raw.(platform.OrientationEvent)
		if !ok {
			return motion.Reading{}, false
		}
		return FromOrientation(ev, at), true
	}

	switch b {
	case motion.Primary:
		s, ok := raw.(platform.Sensor)
		if !ok || s == nil {
			return motion.Reading{}, false
		}
		return FromSensor(c, s, at), true
	case motion.Fallback:
		ev, ok := raw.(platform.MotionEvent)
		if !ok {
			return motion.Reading{}, false
		}
		return FromMotionEvent(c, ev, at)
	}
	return motion.Reading{}, false
}

// FromSensor reads the instantaneous values off a discrete sensor.
func FromSensor(c motion.Category, s platform.Sensor, at time.Time) motion.Reading {
	x, y, z := s.Values()
	return motion.Reading{
		Category:   c,
		X:          motion.Axis(&x),
		Y:          motion.Axis(&y),
		Z:          motion.Axis(&z),
		CapturedAt: at,
	}
}

// FromMotionEvent extracts the structure relevant to c from a combined
// motion event.
func FromMotionEvent(c motion.Category, ev platform.MotionEvent, at time.Time) (motion.Reading, bool) {
	switch c {
	case motion.LinearMotion:
		a := ev.AccelerationIncludingGravity
		if a == nil {
			return motion.Reading{}, false
		}
		return motion.Reading{
			Category:   c,
			X:          motion.Axis(a.X),
			Y:          motion.Axis(a.Y),
			Z:          motion.Axis(a.Z),
			CapturedAt: at,
		}, true
	case motion.AngularMotion:
		r := ev.RotationRate
		if r == nil {
			return motion.Reading{}, false
		}
		return motion.Reading{
			Category:   c,
			X:          motion.Axis(r.Alpha),
			Y:          motion.Axis(r.Beta),
			Z:          motion.Axis(r.Gamma),
			CapturedAt: at,
		}, true
	}
	return motion.Reading{}, false
}

// FromOrientation maps alpha, beta, gamma onto X, Y, Z.
func FromOrientation(ev platform.OrientationEvent, at time.Time) motion.Reading {
	return motion.Reading{
		Category:   motion.Orientation,
		X:          motion.Axis(ev.Alpha),
		Y:          motion.Axis(ev.Beta),
		Z:          motion.Axis(ev.Gamma),
		CapturedAt: at,
	}
}
