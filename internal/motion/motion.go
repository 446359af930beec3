// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Category is one kind of motion/orientation data tracked by a session.
type Category int

const (
	LinearMotion  Category = iota // acceleration including gravity, m/s²
	AngularMotion                 // rotation rate
	Orientation                   // alpha/beta/gamma angles, degrees
)

// Categories returns every category in start order.
func Categories() []Category {
	return []Category{LinearMotion, AngularMotion, Orientation}
}

func (c Category) String() string {
	switch c {
	case LinearMotion:
		return "linear"
	case AngularMotion:
		return "angular"
	case Orientation:
		return "orientation"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Backend is the platform interface driving a category.
type Backend int

const (
	Unavailable Backend = iota
	Primary             // discrete high-rate sensor objects
	Fallback            // combined low-rate events
)

func (b Backend) String() string {
	switch b {
	case Primary:
		return "primary"
	case Fallback:
		return "fallback"
	default:
		return "unavailable"
	}
}

func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Requesting
	Active
	Stopped
)

func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reading is one normalized, timestamped triple for a category.
// Axes are either finite or NaN; NaN means the platform had no value.
type Reading struct {
	Category   Category
	X, Y, Z    float64
	CapturedAt time.Time
}

// Axis converts an optional platform value into a reading axis.
func Axis(v *float64) float64 {
	if v == nil || math.IsInf(*v, 0) {
		return math.NaN()
	}
	return *v
}

// Axes returns the three axes in order.
func (r Reading) Axes() [3]float64 {
	return [3]float64{r.X, r.Y, r.Z}
}

type readingJSON struct {
	Category   Category  `json:"category"`
	X          *float64  `json:"x"`
	Y          *float64  `json:"y"`
	Z          *float64  `json:"z"`
	CapturedAt time.Time `json:"captured_at"`
}

// MarshalJSON renders unavailable axes as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Category:   r.Category,
		X:          finite(r.X),
		Y:          finite(r.Y),
		Z:          finite(r.Z),
		CapturedAt: r.CapturedAt,
	})
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var raw readingJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Reading{
		Category:   raw.Category,
		X:          Axis(raw.X),
		Y:          Axis(raw.Y),
		Z:          Axis(raw.Z),
		CapturedAt: raw.CapturedAt,
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
