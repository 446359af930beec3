package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_sensors/internal/format"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesValuesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
# broker on the pi
MQTT_BROKER=tcp://10.0.0.2:1883
BACKEND_MODE=bridge
SENSOR_FREQUENCY_HZ=60
IMU_ACCEL_RANGE=2
PRECISION_COORDINATE=5
DISPLAY_I2C_ADDR=0x3D
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTTBroker)
	assert.Equal(t, ModeBridge, cfg.BackendMode)
	assert.Equal(t, 60.0, cfg.SensorFrequencyHz)
	assert.Equal(t, byte(2), cfg.IMUAccelRange)
	assert.Equal(t, uint16(0x3D), cfg.DisplayI2CAddr)
	assert.Equal(t, 5, cfg.Precision().Coordinate)

	// untouched keys keep their defaults
	assert.Equal(t, "motion/reading/linear", cfg.TopicReadingLinear)
	assert.Equal(t, 8080, cfg.WebServerPort)
}

func TestDefaultPrecisionMatchesFormat(t *testing.T) {
	assert.Equal(t, format.DefaultPrecision, Default().Precision())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFromMapErrors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{"unknown key", map[string]string{"IMU_LEFT_CS_PIN": "18"}, "unknown config key"},
		{"bad mode", map[string]string{"BACKEND_MODE": "magic"}, "BACKEND_MODE"},
		{"range too big", map[string]string{"IMU_GYRO_RANGE": "4"}, "IMU_GYRO_RANGE must be 0-3"},
		{"bad frequency", map[string]string{"SENSOR_FREQUENCY_HZ": "0"}, "SENSOR_FREQUENCY_HZ"},
		{"bad digits", map[string]string{"PRECISION_MOTION": "x"}, "invalid PRECISION_MOTION"},
		{"empty broker", map[string]string{"MQTT_BROKER": ""}, "MQTT_BROKER is required"},
		{"bad port", map[string]string{"WEB_SERVER_PORT": "70000"}, "WEB_SERVER_PORT"},
		{"bad display content", map[string]string{"DISPLAY_CONTENT": "imu_raw_left"}, "DISPLAY_CONTENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.values)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBridgeModeDoesNotNeedIMU(t *testing.T) {
	_, err := FromMap(map[string]string{"BACKEND_MODE": "bridge", "IMU_SPI_DEVICE": ""})
	assert.NoError(t, err)

	_, err = FromMap(map[string]string{"BACKEND_MODE": "hardware", "IMU_SPI_DEVICE": ""})
	assert.Error(t, err)
}
