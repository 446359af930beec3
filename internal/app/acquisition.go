// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
	"github.com/relabs-tech/motion_sensors/internal/sensors"
	"github.com/relabs-tech/motion_sensors/internal/session"
)

// clientID makes an MQTT client ID unique per process so several
// instances can share a broker.
func clientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// usesBridgedEvents reports whether mode takes combined events from a
// remote device.
func usesBridgedEvents(mode string) bool {
	return mode == config.ModeAuto || mode == config.ModeBridge
}

func imuConfig(cfg *config.Config) sensors.IMUConfig {
	return sensors.IMUConfig{
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
	}
}

func readingTopics(cfg *config.Config) map[motion.Category]string {
	return map[motion.Category]string{
		motion.LinearMotion:  cfg.TopicReadingLinear,
		motion.AngularMotion: cfg.TopicReadingAngular,
		motion.Orientation:   cfg.TopicReadingOrientation,
	}
}

// newEnvironment installs the backends selected by cfg.BackendMode.
// Combined events are taken from MQTT when events is non-nil and the mode
// uses them.
func newEnvironment(ctx context.Context, cfg *config.Config, events bridge.Subscriber, logger *log.Logger) (*platform.Registry, error) {
	env := platform.NewRegistry()

	switch cfg.BackendMode {
	case config.ModeMock:
		interval := time.Duration(float64(time.Second) / cfg.SensorFrequencyHz)
		sensors.RegisterMock(ctx, env, interval, logger)
		logger.Println("app: using mock sensors")
	case config.ModeAuto, config.ModeHardware:
		sensors.RegisterIMU(env, imuConfig(cfg), logger)
		logger.Printf("app: MPU9250 registered on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
	}

	if events != nil && usesBridgedEvents(cfg.BackendMode) {
		if err := bridge.SubscribeEvents(events, env, cfg.TopicEventMotion, cfg.TopicEventOrientation, logger); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func newController(env platform.Environment, cfg *config.Config, sink session.Sink, observer session.Observer, logger *log.Logger) *session.Controller {
	return session.NewController(session.Options{
		Env:       env,
		Sink:      sink,
		Observer:  observer,
		Logger:    logger,
		Frequency: cfg.SensorFrequencyHz,
	})
}

func logResults(logger *log.Logger, results []session.Result) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			logger.Printf("app: %s start abandoned: %v", r.Category, r.Err)
		case r.Degraded:
			logger.Printf("app: %s %s on %s backend (discrete sensor unavailable)", r.Category, r.State, r.Backend)
		default:
			logger.Printf("app: %s %s on %s backend", r.Category, r.State, r.Backend)
		}
	}
}
