//    Copyright 2017 Ewout Prangsma
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

package bridge

import (
	"time"
)

// API of the bridge, the board specific hardware used to
// generate the servo signal and show the status of the sweeper.
type API interface {
	// Turn Green status led on/off
	SetGreenLED(on bool) error
	// Turn Red status led on/off
	SetRedLED(on bool) error
	// Blink Green status led with given duration between on/off
	BlinkGreenLED(delay time.Duration) error
	// Blink Red status led with given duration between on/off
	BlinkRedLED(delay time.Duration) error

	// PWM opens the hardware PWM output that drives the given GPIO pin.
	// Opening the same pin twice returns the same output.
	PWM(pin int) (PWMOutput, error)
	// SupportsPWM returns true when PWM can be opened for the given pin.
	SupportsPWM(pin int) bool

	Close() error
}

// PWMOutput is the interface satisfied by hardware PWM outputs.
type PWMOutput interface {
	// SetPeriod sets the length of a single PWM period.
	SetPeriod(period time.Duration) error
	// SetDutyCycle sets the high time of each period.
	SetDutyCycle(duty time.Duration) error
	// Enable turns the output on/off.
	Enable(enabled bool) error
	// Close disables the output and releases it.
	Close() error
}

// OutputPin is the interface satisfied by GPIO output pins.
type OutputPin interface {
	Write(bool) error
}

// Pins that are routed to a hardware PWM channel (BCM numbering),
// mapped to their channel.
var pwmChannels = map[int]int{
	12: 0,
	13: 1,
	18: 0,
	19: 1,
}

// pwmChannel returns the hardware PWM channel for the given pin.
func pwmChannel(pin int) (int, bool) {
	ch, found := pwmChannels[pin]
	return ch, found
}
