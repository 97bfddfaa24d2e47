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
	"github.com/pkg/errors"
)

// Config holds the configuration of a single servo sweeper.
type Config struct {
	// PWM channel and pulse range of the servo
	Actuator ActuatorConfig `json:"actuator" yaml:"actuator"`
	// Trajectory and timing of a single sweep
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`
	// Hardware that generates the PWM signal
	Device DeviceConfig `json:"device" yaml:"device"`
	// Optional MQTT broker used for logs & status
	MQTT MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// DefaultConfig returns the configuration used when no
// configuration file is given.
func DefaultConfig() Config {
	return Config{
		Actuator: DefaultActuatorConfig(),
		Sweep:    DefaultSweepConfig(),
		Device: DeviceConfig{
			Type: DeviceTypeLocal,
		},
		MQTT: MQTTConfig{
			Port:  DefaultMQTTPort,
			Topic: DefaultMQTTTopic,
		},
	}
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c Config) Validate() error {
	if err := c.Actuator.Validate(); err != nil {
		return maskAny(err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return maskAny(err)
	}
	if err := c.Device.Validate(); err != nil {
		return maskAny(err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return maskAny(err)
	}
	if c.Device.Type == DeviceTypeMQTT && c.MQTT.Host == "" {
		return errors.Wrap(ValidationError, "Device type 'mqtt' requires an MQTT host")
	}
	return nil
}
