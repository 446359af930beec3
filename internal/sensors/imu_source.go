// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_sensors/internal/platform"
)

const standardGravity = 9.80665 // m/s²

// accelLSBPerG and gyroLSBPerDPS are indexed by the configured range code.
var (
	accelLSBPerG  = []float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS = []float64{131, 65.5, 32.8, 16.4}
)

// IMUConfig selects the MPU9250 wired to the SPI bus.
type IMUConfig struct {
	SPIDevice  string
	CSPin      string
	AccelRange byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	GyroRange  byte // 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
}

// imuDevice is the single MPU9250 shared by the accelerometer and gyroscope
// sensors.
type imuDevice struct {
	mu  sync.Mutex
	imu *mpu9250.MPU9250
	cfg IMUConfig
}

type imuOpener struct {
	once sync.Once
	dev  *imuDevice
	err  error
}

// open initializes the device on first use. A failed open is remembered so
// every later construction fails the same way.
func (o *imuOpener) open(cfg IMUConfig, logger *log.Logger) (*imuDevice, error) {
	o.once.Do(func() {
		o.dev, o.err = openIMU(cfg, logger)
	})
	return o.dev, o.err
}

func openIMU(cfg IMUConfig, logger *log.Logger) (*imuDevice, error) {
	if int(cfg.AccelRange) >= len(accelLSBPerG) || int(cfg.GyroRange) >= len(gyroLSBPerDPS) {
		return nil, fmt.Errorf("IMU: invalid range accel=%d gyro=%d", cfg.AccelRange, cfg.GyroRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.SPIDevice, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	logger.Printf("sensors: accelerometer range set to %d (±%dg)", cfg.AccelRange, []int{2, 4, 8, 16}[cfg.AccelRange])

	if err := imu.SetGyroRange(cfg.GyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	logger.Printf("sensors: gyroscope range set to %d (±%d°/s)", cfg.GyroRange, []int{250, 500, 1000, 2000}[cfg.GyroRange])

	if err := imu.Calibrate(); err != nil {
		logger.Printf("sensors: Warning: IMU calibration failed: %v", err)
	} else {
		logger.Printf("sensors: IMU calibration complete")
	}

	return &imuDevice{imu: imu, cfg: cfg}, nil
}

// readAccel returns acceleration including gravity in m/s².
func (d *imuDevice) readAccel() (x, y, z float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ax, err := d.imu.GetAccelerationX()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := d.imu.GetAccelerationY()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := d.imu.GetAccelerationZ()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Z: %w", err)
	}

	scale := standardGravity / accelLSBPerG[d.cfg.AccelRange]
	return float64(ax) * scale, float64(ay) * scale, float64(az) * scale, nil
}

// readGyro returns the rotation rate in rad/s.
func (d *imuDevice) readGyro() (x, y, z float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	gx, err := d.imu.GetRotationX()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := d.imu.GetRotationY()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := d.imu.GetRotationZ()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU gyro Z: %w", err)
	}

	scale := math.Pi / 180 / gyroLSBPerDPS[d.cfg.GyroRange]
	return float64(gx) * scale, float64(gy) * scale, float64(gz) * scale, nil
}

// RegisterIMU makes the MPU9250 available as the Accelerometer and
// Gyroscope constructors. The hardware is only touched when a session
// constructs one of them, so a missing or restricted device surfaces as a
// construction failure.
func RegisterIMU(env *platform.Registry, cfg IMUConfig, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	opener := &imuOpener{}

	env.RegisterConstructor(platform.Accelerometer, func(opts platform.SensorOptions) (platform.Sensor, error) {
		dev, err := opener.open(cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewPolling(platform.Accelerometer, opts.Frequency, dev.readAccel, logger), nil
	})
	env.RegisterConstructor(platform.Gyroscope, func(opts platform.SensorOptions) (platform.Sensor, error) {
		dev, err := opener.open(cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewPolling(platform.Gyroscope, opts.Frequency, dev.readGyro, logger), nil
	})
}
