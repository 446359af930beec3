package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/motion"
)

// Backend modes for BACKEND_MODE.
const (
	ModeAuto     = "auto"     // hardware IMU plus bridged events
	ModeHardware = "hardware" // hardware IMU only
	ModeBridge   = "bridge"   // bridged events only
	ModeMock     = "mock"     // synthetic sensors
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDMotion  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDGeo     string

	// Topics: readings produced per category
	TopicReadingLinear      string
	TopicReadingAngular     string
	TopicReadingOrientation string
	// Topics: raw combined events consumed as fallback backend
	TopicEventMotion      string
	TopicEventOrientation string
	TopicStatus           string
	TopicGeo              string

	// Acquisition
	BackendMode       string
	SensorFrequencyHz float64

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Formatting (decimals)
	PrecisionMotion      int
	PrecisionOrientation int
	PrecisionCoordinate  int
	PrecisionAccuracy    int
	PrecisionSpeed       int

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int    // milliseconds
	DisplayContent        string // a category name or "geo"
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDMotion:  "motion-producer",
		MQTTClientIDConsole: "motion-console",
		MQTTClientIDWeb:     "motion-web",
		MQTTClientIDDisplay: "motion-display",
		MQTTClientIDGeo:     "motion-geo",

		TopicReadingLinear:      "motion/reading/linear",
		TopicReadingAngular:     "motion/reading/angular",
		TopicReadingOrientation: "motion/reading/orientation",
		TopicEventMotion:        "motion/event/devicemotion",
		TopicEventOrientation:   "motion/event/deviceorientation",
		TopicStatus:             "motion/status",
		TopicGeo:                "motion/geo",

		BackendMode:       ModeAuto,
		SensorFrequencyHz: 30,

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "8",

		PrecisionMotion:      2,
		PrecisionOrientation: 2,
		PrecisionCoordinate:  6,
		PrecisionAccuracy:    1,
		PrecisionSpeed:       2,

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		WebServerPort: 8080,
		WebStaticDir:  "web",

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
		DisplayContent:        "orientation",
	}
}

// Load reads a KEY=VALUE configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromMap(values)
}

// FromMap applies values on top of Default. Keys are applied in sorted
// order so errors are reported deterministically.
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MOTION":
		c.MQTTClientIDMotion = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_GEO":
		c.MQTTClientIDGeo = value

	// Topics
	case "TOPIC_READING_LINEAR":
		c.TopicReadingLinear = value
	case "TOPIC_READING_ANGULAR":
		c.TopicReadingAngular = value
	case "TOPIC_READING_ORIENTATION":
		c.TopicReadingOrientation = value
	case "TOPIC_EVENT_MOTION":
		c.TopicEventMotion = value
	case "TOPIC_EVENT_ORIENTATION":
		c.TopicEventOrientation = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_GEO":
		c.TopicGeo = value

	// Acquisition
	case "BACKEND_MODE":
		switch value {
		case ModeAuto, ModeHardware, ModeBridge, ModeMock:
			c.BackendMode = value
		default:
			return fmt.Errorf("BACKEND_MODE must be one of auto, hardware, bridge, mock, got %q", value)
		}
	case "SENSOR_FREQUENCY_HZ":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_FREQUENCY_HZ %q: %w", value, err)
		}
		if hz <= 0 || hz > 1000 {
			return fmt.Errorf("SENSOR_FREQUENCY_HZ must be in (0, 1000], got %v", hz)
		}
		c.SensorFrequencyHz = hz

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := parseRange(key, value, 3)
		if err != nil {
			return err
		}
		c.IMUAccelRange = rangeVal
	case "IMU_GYRO_RANGE":
		rangeVal, err := parseRange(key, value, 3)
		if err != nil {
			return err
		}
		c.IMUGyroRange = rangeVal

	// Formatting
	case "PRECISION_MOTION":
		return parseDigits(key, value, &c.PrecisionMotion)
	case "PRECISION_ORIENTATION":
		return parseDigits(key, value, &c.PrecisionOrientation)
	case "PRECISION_COORDINATE":
		return parseDigits(key, value, &c.PrecisionCoordinate)
	case "PRECISION_ACCURACY":
		return parseDigits(key, value, &c.PrecisionAccuracy)
	case "PRECISION_SPEED":
		return parseDigits(key, value, &c.PrecisionSpeed)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_CONTENT":
		c.DisplayContent = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseRange(key, value string, hi int) (byte, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 || v > hi {
		return 0, fmt.Errorf("%s must be 0-%d, got %d", key, hi, v)
	}
	return byte(v), nil
}

func parseDigits(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 || v > 12 {
		return fmt.Errorf("%s must be 0-12, got %d", key, v)
	}
	*dst = v
	return nil
}

// Precision returns the formatting table configured by the PRECISION_* keys.
func (c *Config) Precision() format.Precision {
	return format.Precision{
		Motion:      c.PrecisionMotion,
		Orientation: c.PrecisionOrientation,
		Coordinate:  c.PrecisionCoordinate,
		Accuracy:    c.PrecisionAccuracy,
		Speed:       c.PrecisionSpeed,
	}
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.BackendMode == ModeAuto || c.BackendMode == ModeHardware {
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required in %s mode", c.BackendMode)
		}
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.DisplayContent != "geo" {
		if _, err := motion.ParseCategory(c.DisplayContent); err != nil {
			return fmt.Errorf("DISPLAY_CONTENT must be linear, angular, orientation or geo, got %q", c.DisplayContent)
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
