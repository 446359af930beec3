// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package capability decides which backend can drive each category.
package capability

import (
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// Prober selects the backend for a category. Implementations are read-only
// and safe to call concurrently.
type Prober interface {
	Probe(c motion.Category) motion.Backend
}

// primaryConstructors are required together before the discrete sensors
// are preferred for either motion category.
var primaryConstructors = []string{platform.Accelerometer, platform.Gyroscope}

type envProber struct {
	env platform.Environment
}

// New returns a Prober inspecting env.
func New(env platform.Environment) Prober {
	return envProber{env: env}
}

func (p envProber) Probe(c motion.Category) motion.Backend {
	switch c {
	case motion.LinearMotion, motion.AngularMotion:
		if p.hasAll(primaryConstructors) {
			return motion.Primary
		}
		if _, ok := p.env.MotionEvents(); ok {
			return motion.Fallback
		}
	case motion.Orientation:
		// orientation only exists as a combined event
		if _, ok := p.env.OrientationEvents(); ok {
			return motion.Fallback
		}
	}
	return motion.Unavailable
}

func (p envProber) hasAll(names []string) bool {
	for _, name := range names {
		if _, ok := p.env.Constructor(name); !ok {
			return false
		}
	}
	return true
}

// Fixed is a Prober with predetermined answers. Missing categories are
// Unavailable.
type Fixed map[motion.Category]motion.Backend

func (f Fixed) Probe(c motion.Category) motion.Backend {
	return f[c]
}
