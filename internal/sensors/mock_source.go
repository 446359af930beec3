// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// mockMotion generates smoothly changing values from the time elapsed
// since start.
type mockMotion struct {
	start time.Time
}

func (m mockMotion) accel() (float64, float64, float64, error) {
	t := time.Since(m.start).Seconds()
	return 0.5 * math.Sin(t), 0.5 * math.Cos(t*0.7), standardGravity, nil
}

func (m mockMotion) gyro() (float64, float64, float64, error) {
	t := time.Since(m.start).Seconds()
	return 0.2 * math.Cos(t), -0.1 * math.Sin(t*1.3), 0.05, nil
}

func (m mockMotion) orientation() platform.OrientationEvent {
	t := time.Since(m.start).Seconds()
	alpha := math.Mod(t*30, 360)
	beta := 15 * math.Cos(t*0.7)
	gamma := 20 * math.Sin(t)
	return platform.OrientationEvent{Alpha: &alpha, Beta: &beta, Gamma: &gamma}
}

// RegisterMock installs synthetic Accelerometer and Gyroscope constructors
// and enables orientation events. Orientation events are dispatched every
// interval until ctx is done.
func RegisterMock(ctx context.Context, env *platform.Registry, interval time.Duration, logger *log.Logger) {
	m := mockMotion{start: time.Now()}

	env.RegisterConstructor(platform.Accelerometer, func(opts platform.SensorOptions) (platform.Sensor, error) {
		return NewPolling(platform.Accelerometer, opts.Frequency, m.accel, logger), nil
	})
	env.RegisterConstructor(platform.Gyroscope, func(opts platform.SensorOptions) (platform.Sensor, error) {
		return NewPolling(platform.Gyroscope, opts.Frequency, m.gyro, logger), nil
	})

	target := env.EnableOrientationEvents()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				target.Dispatch(m.orientation())
			}
		}
	}()
}
