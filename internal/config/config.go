// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Config holds all application configuration values.
type Config struct {
	// Hardware backend: "periph", "gopigo" or "sim"
	Backend  string `validate:"oneof=periph gopigo sim"`
	LogLevel string `validate:"oneof=trace debug info warn error"`

	// Behaviour
	BaseSpeed       int `validate:"min=0,max=255"`
	TurnSpeed       int `validate:"min=0,max=255"`
	MarkerEnabled   bool
	MarkerThreshold int `validate:"min=0,max=1023"`

	// Calibration
	CalibrationSamples int `validate:"min=1"`

	// Timing, milliseconds
	CalibrationSampleInterval int `validate:"min=0"`
	DebounceDelay             int `validate:"min=0"`
	ButtonPollInterval        int `validate:"min=1"`
	CycleDelay                int `validate:"min=0"`
	RestartSettleDelay        int `validate:"min=0"`
	TelemetryInterval         int `validate:"min=0"`

	// periph backend: ADS1115 ADC on I2C, GPIO by name
	ADCI2CBus           string
	ADCI2CAddr          uint16 `validate:"required_if=Backend periph"`
	ADCFullScaleMV      int    `validate:"required_if=Backend periph,min=0"`
	SensorLeftChannel   int    `validate:"min=0,max=3"`
	SensorCenterChannel int    `validate:"min=0,max=3"`
	SensorRightChannel  int    `validate:"min=0,max=3"`
	MarkerChannel       int    `validate:"min=0,max=3"`
	ButtonPin           string `validate:"required_if=Backend periph"`
	LEDPin              string `validate:"required_if=Backend periph"`
	MotorLeftPWMPin     string `validate:"required_if=Backend periph"`
	MotorLeftDirPin     string `validate:"required_if=Backend periph"`
	MotorRightPWMPin    string `validate:"required_if=Backend periph"`
	MotorRightDirPin    string `validate:"required_if=Backend periph"`
	PWMFrequency        int    `validate:"min=1"`

	// gopigo backend: GoPiGo3 grove analog pins ("AD_1_1" ...) and a
	// Raspberry Pi header pin for the button
	GoPiGoSensorLeftPin   string `validate:"required_if=Backend gopigo"`
	GoPiGoSensorCenterPin string `validate:"required_if=Backend gopigo"`
	GoPiGoSensorRightPin  string `validate:"required_if=Backend gopigo"`
	GoPiGoMarkerPin       string
	GoPiGoButtonPin       string `validate:"required_if=Backend gopigo"`

	// sim backend
	SimCurvature float64 `validate:"min=0"`
	SimNoise     int     `validate:"min=0,max=200"`
	SimSeed      int64
	// milliseconds of full-speed driving before the end marker, 0 for none
	SimMarkerAfter int `validate:"min=0"`

	// MQTT (empty broker disables MQTT telemetry)
	MQTTBroker           string
	MQTTClientIDFollower string `validate:"required_with=MQTTBroker"`
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicFrames      string `validate:"required_with=MQTTBroker"`
	TopicEvents      string `validate:"required_with=MQTTBroker"`
	TopicCalibration string

	// Serial telemetry (empty port disables it)
	SerialPort     string
	SerialBaudRate int `validate:"required_with=SerialPort"`

	// Status display
	DisplayEnabled bool
	DisplayI2CBus  string
	DisplayI2CAddr uint16 `validate:"required_if=DisplayEnabled true"`

	// Metrics endpoint (empty disables it)
	MetricsAddr string

	// Web Server
	WebServerPort int `validate:"min=1,max=65535"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var validate = validator.New()

// Default returns the tuned robot configuration with the sim
// backend selected, so a bare config file is enough for a bench run.
func Default() *Config {
	return &Config{
		Backend:  "sim",
		LogLevel: "info",

		BaseSpeed:       200,
		TurnSpeed:       120,
		MarkerEnabled:   true,
		MarkerThreshold: 50,

		CalibrationSamples: 20,

		CalibrationSampleInterval: 20,
		DebounceDelay:             200,
		ButtonPollInterval:        10,
		CycleDelay:                10,
		RestartSettleDelay:        200,
		TelemetryInterval:         300,

		ADCI2CAddr:          0x48,
		ADCFullScaleMV:      3300,
		SensorLeftChannel:   1,
		SensorCenterChannel: 2,
		SensorRightChannel:  3,
		MarkerChannel:       0,
		PWMFrequency:        1000,

		GoPiGoSensorLeftPin:   "AD_1_1",
		GoPiGoSensorCenterPin: "AD_1_2",
		GoPiGoSensorRightPin:  "AD_2_1",
		GoPiGoButtonPin:       "11",

		SimCurvature: 0.4,
		SimNoise:     8,
		SimSeed:      1,

		MQTTClientIDFollower: "buzzline-follower",
		MQTTClientIDConsole:  "buzzline-console",
		MQTTClientIDWeb:      "buzzline-web",
		TopicFrames:          "buzzline/telemetry",
		TopicEvents:          "buzzline/events",
		TopicCalibration:     "buzzline/calibration",

		SerialBaudRate: 115200,

		DisplayI2CAddr: 0x3C,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct. Keys not
// present in the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "BACKEND":
		c.Backend = strings.ToLower(value)
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	// Behaviour
	case "BASE_SPEED":
		c.BaseSpeed, err = parseInt(key, value)
	case "TURN_SPEED":
		c.TurnSpeed, err = parseInt(key, value)
	case "MARKER_ENABLED":
		c.MarkerEnabled, err = parseBool(key, value)
	case "MARKER_THRESHOLD":
		c.MarkerThreshold, err = parseInt(key, value)

	// Calibration
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)

	// Timing
	case "CALIBRATION_SAMPLE_INTERVAL":
		c.CalibrationSampleInterval, err = parseInt(key, value)
	case "DEBOUNCE_DELAY":
		c.DebounceDelay, err = parseInt(key, value)
	case "BUTTON_POLL_INTERVAL":
		c.ButtonPollInterval, err = parseInt(key, value)
	case "CYCLE_DELAY":
		c.CycleDelay, err = parseInt(key, value)
	case "RESTART_SETTLE_DELAY":
		c.RestartSettleDelay, err = parseInt(key, value)
	case "TELEMETRY_INTERVAL":
		c.TelemetryInterval, err = parseInt(key, value)

	// periph backend
	case "ADC_I2C_BUS":
		c.ADCI2CBus = value
	case "ADC_I2C_ADDR":
		c.ADCI2CAddr, err = parseAddr(key, value)
	case "ADC_FULL_SCALE_MV":
		c.ADCFullScaleMV, err = parseInt(key, value)
	case "SENSOR_LEFT_CHANNEL":
		c.SensorLeftChannel, err = parseInt(key, value)
	case "SENSOR_CENTER_CHANNEL":
		c.SensorCenterChannel, err = parseInt(key, value)
	case "SENSOR_RIGHT_CHANNEL":
		c.SensorRightChannel, err = parseInt(key, value)
	case "MARKER_CHANNEL":
		c.MarkerChannel, err = parseInt(key, value)
	case "BUTTON_PIN":
		c.ButtonPin = value
	case "LED_PIN":
		c.LEDPin = value
	case "MOTOR_L_PWM_PIN":
		c.MotorLeftPWMPin = value
	case "MOTOR_L_DIR_PIN":
		c.MotorLeftDirPin = value
	case "MOTOR_R_PWM_PIN":
		c.MotorRightPWMPin = value
	case "MOTOR_R_DIR_PIN":
		c.MotorRightDirPin = value
	case "PWM_FREQUENCY":
		c.PWMFrequency, err = parseInt(key, value)

	// gopigo backend
	case "GOPIGO_SENSOR_LEFT_PIN":
		c.GoPiGoSensorLeftPin = value
	case "GOPIGO_SENSOR_CENTER_PIN":
		c.GoPiGoSensorCenterPin = value
	case "GOPIGO_SENSOR_RIGHT_PIN":
		c.GoPiGoSensorRightPin = value
	case "GOPIGO_MARKER_PIN":
		c.GoPiGoMarkerPin = value
	case "GOPIGO_BUTTON_PIN":
		c.GoPiGoButtonPin = value

	// sim backend
	case "SIM_CURVATURE":
		c.SimCurvature, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = errors.Wrapf(err, "invalid %s %q", key, value)
		}
	case "SIM_NOISE":
		c.SimNoise, err = parseInt(key, value)
	case "SIM_SEED":
		c.SimSeed, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			err = errors.Wrapf(err, "invalid %s %q", key, value)
		}
	case "SIM_MARKER_AFTER":
		c.SimMarkerAfter, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FOLLOWER":
		c.MQTTClientIDFollower = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_TELEMETRY":
		c.TopicFrames = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(key, value)

	// Metrics / Web
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	default:
		return errors.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks ranges and the fields each backend requires.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.Errorf("invalid config: %s", describe(verrs[0]))
		}
		return errors.Wrap(err, "invalid config")
	}
	if c.Backend == "periph" {
		return c.checkPeriphPins()
	}
	return nil
}

// checkPeriphPins rejects two roles wired to the same GPIO.
func (c *Config) checkPeriphPins() error {
	pins := []struct{ key, name string }{
		{"BUTTON_PIN", c.ButtonPin},
		{"LED_PIN", c.LEDPin},
		{"MOTOR_L_PWM_PIN", c.MotorLeftPWMPin},
		{"MOTOR_L_DIR_PIN", c.MotorLeftDirPin},
		{"MOTOR_R_PWM_PIN", c.MotorRightPWMPin},
		{"MOTOR_R_DIR_PIN", c.MotorRightDirPin},
	}
	seen := make(map[string]string, len(pins))
	for _, p := range pins {
		if other, ok := seen[p.name]; ok {
			return errors.Errorf("invalid config: %s and %s both use pin %s", other, p.key, p.name)
		}
		seen[p.name] = p.key
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_if", "required_with":
		return fmt.Sprintf("%s is required (%s %s)", fe.Field(), fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", fe.Field(), fe.Param(), fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return uint16(v), nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
