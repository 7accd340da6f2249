package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buzzline_config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
# bench robot
BACKEND=periph
BASE_SPEED = 180
TURN_SPEED=100
MARKER_ENABLED=false
ADC_I2C_BUS=1
ADC_I2C_ADDR=0x49
BUTTON_PIN=GPIO17
LED_PIN=GPIO27
MOTOR_L_PWM_PIN=GPIO12
MOTOR_L_DIR_PIN=GPIO5
MOTOR_R_PWM_PIN=GPIO13
MOTOR_R_DIR_PIN=GPIO6
MQTT_BROKER=tcp://localhost:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend != "periph" || cfg.BaseSpeed != 180 || cfg.TurnSpeed != 100 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MarkerEnabled {
		t.Error("MARKER_ENABLED=false ignored")
	}
	if cfg.ADCI2CAddr != 0x49 {
		t.Errorf("ADCI2CAddr = %#x", cfg.ADCI2CAddr)
	}
	// untouched keys keep the defaults
	if cfg.CalibrationSamples != 20 || cfg.TelemetryInterval != 300 || cfg.MarkerThreshold != 50 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.TopicFrames != "buzzline/telemetry" {
		t.Errorf("TopicFrames = %q", cfg.TopicFrames)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "FOO=1\n", "unknown config key"},
		{"missing equals", "BASE_SPEED\n", "invalid config line 1"},
		{"not a number", "BASE_SPEED=fast\n", "invalid BASE_SPEED"},
		{"speed out of range", "TURN_SPEED=300\n", "TurnSpeed must satisfy max=255"},
		{"bad backend", "BACKEND=arduino\n", "Backend must be one of"},
		{"periph without pins", "BACKEND=periph\n", "is required"},
		{"zero poll interval", "BUTTON_POLL_INTERVAL=0\n", "ButtonPollInterval"},
		{"serial without baud", "SERIAL_PORT=/dev/ttyAMA0\nSERIAL_BAUD_RATE=0\n", "SerialBaudRate is required"},
		{"shared periph pin", "BACKEND=periph\nBUTTON_PIN=GPIO17\nLED_PIN=GPIO17\nMOTOR_L_PWM_PIN=GPIO12\nMOTOR_L_DIR_PIN=GPIO5\nMOTOR_R_PWM_PIN=GPIO13\nMOTOR_R_DIR_PIN=GPIO6\n", "BUTTON_PIN and LED_PIN both use pin GPIO17"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "buzzline_config.txt"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "sim" || cfg.SimMarkerAfter != 20000 || cfg.MQTTBroker == "" {
		t.Errorf("shipped config = %+v", cfg)
	}
}
