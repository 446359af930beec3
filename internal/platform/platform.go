// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package platform

import (
	"context"
	"errors"
)

// Names of the discrete sensor constructors.
const (
	Accelerometer = "Accelerometer"
	Gyroscope     = "Gyroscope"
)

// DefaultFrequency is the sampling rate requested from discrete sensors.
const DefaultFrequency = 30.0

// ErrNoConstructor is returned when a named sensor constructor is not registered.
var ErrNoConstructor = errors.New("sensor constructor not available")

// Sensor is a discrete high-rate sensor object. Readings are pushed as
// payload-less notifications; the current values are read off the sensor.
type Sensor interface {
	Start() error
	Stop() error
	// Values returns the latest sample, NaN on every axis before the first one.
	Values() (x, y, z float64)
	OnReading(fn func()) *Subscription
}

// SensorOptions configures a discrete sensor at construction time.
type SensorOptions struct {
	Frequency float64 // Hz
}

// SensorConstructor builds a sensor. It may fail even when registered,
// e.g. when the hardware is present but access is restricted.
type SensorConstructor func(opts SensorOptions) (Sensor, error)

// Vector is acceleration including gravity, m/s². Nil fields are unknown.
type Vector struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// RotationRate is the rotation rate around each axis, deg/s.
type RotationRate struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
	Gamma *float64 `json:"gamma"`
}

// MotionEvent is the combined low-rate motion event. Either structure may
// be missing on a given event.
type MotionEvent struct {
	AccelerationIncludingGravity *Vector       `json:"accelerationIncludingGravity,omitempty"`
	RotationRate                 *RotationRate `json:"rotationRate,omitempty"`
	Interval                     float64       `json:"interval,omitempty"` // ms
}

// OrientationEvent carries device orientation angles in degrees.
type OrientationEvent struct {
	Alpha    *float64 `json:"alpha"`
	Beta     *float64 `json:"beta"`
	Gamma    *float64 `json:"gamma"`
	Absolute bool     `json:"absolute,omitempty"`
}

// Family groups events sharing a permission prompt.
type Family string

const (
	MotionFamily      Family = "motion"
	OrientationFamily Family = "orientation"
)

// PermissionState is the answer to a permission request.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// PermissionRequester asks the platform for access to an event family.
// It may block until the user answers.
type PermissionRequester func(ctx context.Context) (PermissionState, error)

// Environment is what the acquisition core can see of the platform.
type Environment interface {
	Constructor(name string) (SensorConstructor, bool)
	MotionEvents() (*Target[MotionEvent], bool)
	OrientationEvents() (*Target[OrientationEvent], bool)
	PermissionRequester(f Family) (PermissionRequester, bool)
}
