//    Copyright 2026 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	conf := DefaultConfig()
	if err := conf.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if conf.Actuator.Pin != 33 || conf.Actuator.FrequencyHz != 333 {
		t.Errorf("unexpected binding: %+v", conf.Actuator)
	}
	if conf.Actuator.MinPulse != 900*time.Microsecond || conf.Actuator.MaxPulse != 2100*time.Microsecond {
		t.Errorf("unexpected pulse range: %+v", conf.Actuator)
	}
	if got := conf.Sweep.StepsPerPhase(); got != 132 {
		t.Errorf("expected 132 steps per phase, got %d", got)
	}
}

func TestActuatorPeriod(t *testing.T) {
	conf := DefaultActuatorConfig()
	if got, want := conf.Period(), 3003003*time.Nanosecond; got != want {
		t.Errorf("Period() = %s, want %s", got, want)
	}
	conf.FrequencyHz = 0
	if got := conf.Period(); got != 0 {
		t.Errorf("Period() with zero frequency = %s, want 0", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{"default", func(c *Config) {}, true},
		{"zero frequency", func(c *Config) { c.Actuator.FrequencyHz = 0 }, false},
		{"pulse below limit", func(c *Config) { c.Actuator.MinPulse = 400 * time.Microsecond }, false},
		{"pulse above limit", func(c *Config) { c.Actuator.MaxPulse = 2600 * time.Microsecond }, false},
		{"inverted pulses", func(c *Config) {
			c.Actuator.MinPulse = 2000 * time.Microsecond
			c.Actuator.MaxPulse = 1000 * time.Microsecond
		}, false},
		{"pulse longer than period", func(c *Config) { c.Actuator.FrequencyHz = 500 }, false},
		{"negative pin", func(c *Config) { c.Actuator.Pin = -1 }, false},
		{"upper above 180", func(c *Config) { c.Sweep.UpperAngle = 181 }, false},
		{"lower below 0", func(c *Config) { c.Sweep.LowerAngle = -1 }, false},
		{"inverted range", func(c *Config) { c.Sweep.LowerAngle = 177 }, false},
		{"single angle range", func(c *Config) { c.Sweep.LowerAngle = 176 }, true},
		{"negative step delay", func(c *Config) { c.Sweep.ForwardStepDelay = -time.Millisecond }, false},
		{"negative settle delay", func(c *Config) { c.Sweep.SettleDelay = -time.Millisecond }, false},
		{"negative cycle delay", func(c *Config) { c.Sweep.CycleDelay = -time.Millisecond }, false},
		{"unknown device", func(c *Config) { c.Device.Type = "i2c" }, false},
		{"serial without port", func(c *Config) { c.Device.Type = DeviceTypeSerial }, false},
		{"serial with port", func(c *Config) {
			c.Device.Type = DeviceTypeSerial
			c.Device.Address = "/dev/ttyUSB0"
		}, true},
		{"mqtt without broker", func(c *Config) { c.Device.Type = DeviceTypeMQTT }, false},
		{"mqtt with broker", func(c *Config) {
			c.Device.Type = DeviceTypeMQTT
			c.MQTT.Host = "broker.local"
		}, true},
		{"mqtt invalid port", func(c *Config) {
			c.MQTT.Host = "broker.local"
			c.MQTT.Port = 0
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultConfig()
			tc.modify(&conf)
			err := conf.Validate()
			if tc.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if errors.Cause(err) != ValidationError {
					t.Errorf("expected ValidationError cause, got %v", err)
				}
			}
		})
	}
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(`
sweep:
  lower_angle: 60
  cycle_delay: 1500ms
device:
  type: serial
  address: /dev/ttyACM0
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	expected := DefaultConfig()
	expected.Sweep.LowerAngle = 60
	expected.Sweep.CycleDelay = 1500 * time.Millisecond
	expected.Device = DeviceConfig{Type: DeviceTypeSerial, Address: "/dev/ttyACM0"}
	if diff := cmp.Diff(expected, conf); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	if _, err := ParseConfig([]byte("sweep:\n  upper_angle: 200\n")); err == nil {
		t.Error("expected error for upper angle 200")
	}
	if _, err := ParseConfig([]byte("sweep: [1, 2")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	if err := os.WriteFile(path, []byte("actuator:\n  pin: 18\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	conf, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if conf.Actuator.Pin != 18 {
		t.Errorf("expected pin 18, got %d", conf.Actuator.Pin)
	}
	if conf.Actuator.FrequencyHz != DefaultFrequency {
		t.Errorf("expected default frequency, got %d", conf.Actuator.FrequencyHz)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
