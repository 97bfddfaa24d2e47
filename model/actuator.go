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
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultPin is the pin the servo signal is connected to.
	DefaultPin = 33
	// DefaultFrequency is the PWM carrier frequency in Hz.
	DefaultFrequency = 333
	// DefaultMinPulse is the pulse width that corresponds to 0 degrees.
	DefaultMinPulse = 900 * time.Microsecond
	// DefaultMaxPulse is the pulse width that corresponds to 180 degrees.
	DefaultMaxPulse = 2100 * time.Microsecond

	// Limits of the pulse widths accepted by hobby servos.
	MinPulseLimit = 500 * time.Microsecond
	MaxPulseLimit = 2500 * time.Microsecond

	// MinAngle and MaxAngle bound every commanded angle.
	MinAngle = 0
	MaxAngle = 180
)

// ActuatorConfig holds the binding of a servo to a PWM channel.
type ActuatorConfig struct {
	// Pin that carries the PWM signal
	Pin int `json:"pin" yaml:"pin"`
	// Carrier frequency in Hz
	FrequencyHz uint32 `json:"frequency_hz" yaml:"frequency_hz"`
	// Pulse width for 0 degrees
	MinPulse time.Duration `json:"min_pulse" yaml:"min_pulse"`
	// Pulse width for 180 degrees
	MaxPulse time.Duration `json:"max_pulse" yaml:"max_pulse"`
}

// DefaultActuatorConfig returns a 333Hz binding on pin 33 with
// a 900-2100us pulse range.
func DefaultActuatorConfig() ActuatorConfig {
	return ActuatorConfig{
		Pin:         DefaultPin,
		FrequencyHz: DefaultFrequency,
		MinPulse:    DefaultMinPulse,
		MaxPulse:    DefaultMaxPulse,
	}
}

// Period returns the duration of a single PWM period.
func (c ActuatorConfig) Period() time.Duration {
	if c.FrequencyHz == 0 {
		return 0
	}
	return time.Second / time.Duration(c.FrequencyHz)
}

// SameBinding returns true when both configurations bind the same
// pin with the same frequency and pulse range.
func (c ActuatorConfig) SameBinding(other ActuatorConfig) bool {
	return c == other
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c ActuatorConfig) Validate() error {
	if c.Pin < 0 {
		return errors.Wrapf(ValidationError, "Invalid pin %d", c.Pin)
	}
	if c.FrequencyHz == 0 {
		return errors.Wrap(ValidationError, "Frequency must be positive")
	}
	if c.MinPulse < MinPulseLimit || c.MaxPulse > MaxPulseLimit {
		return errors.Wrapf(ValidationError, "Pulse range %s-%s outside %s-%s", c.MinPulse, c.MaxPulse, MinPulseLimit, MaxPulseLimit)
	}
	if c.MinPulse >= c.MaxPulse {
		return errors.Wrapf(ValidationError, "Minimum pulse %s must be less than maximum pulse %s", c.MinPulse, c.MaxPulse)
	}
	if period := c.Period(); c.MaxPulse >= period {
		return errors.Wrapf(ValidationError, "Maximum pulse %s does not fit in period %s (%dHz)", c.MaxPulse, period, c.FrequencyHz)
	}
	return nil
}
