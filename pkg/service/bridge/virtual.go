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
	"fmt"
	"strconv"
	"sync"
	"time"
)

// VirtualBridge is a bridge without hardware.
// Its PWM outputs only remember their state.
type VirtualBridge struct {
	mutex   sync.Mutex
	outputs map[int]*VirtualPWM
	green   bool
	red     bool
}

// NewVirtualBridge implements the bridge for a sweeper without hardware.
func NewVirtualBridge() (*VirtualBridge, error) {
	return &VirtualBridge{
		outputs: make(map[int]*VirtualPWM),
	}, nil
}

// Turn Green status led on/off
func (p *VirtualBridge) SetGreenLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.green = on
	return nil
}

// Turn Red status led on/off
func (p *VirtualBridge) SetRedLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.red = on
	return nil
}

// Blink Green status led with given duration between on/off
func (p *VirtualBridge) BlinkGreenLED(delay time.Duration) error {
	return nil
}

// Blink Red status led with given duration between on/off
func (p *VirtualBridge) BlinkRedLED(delay time.Duration) error {
	return nil
}

// LEDs returns the state of the green & red status led.
func (p *VirtualBridge) LEDs() (green, red bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.green, p.red
}

// PWM opens the virtual PWM output of the given pin.
// Every pin is accepted.
func (p *VirtualBridge) PWM(pin int) (PWMOutput, error) {
	if pin < 0 {
		return nil, fmt.Errorf("Invalid pin %d", pin)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if out, found := p.outputs[pin]; found {
		return out, nil
	}
	out := &VirtualPWM{pin: strconv.Itoa(pin)}
	p.outputs[pin] = out
	return out, nil
}

// SupportsPWM returns true for every valid pin.
func (p *VirtualBridge) SupportsPWM(pin int) bool {
	return pin >= 0
}

// Output returns the virtual PWM output of the given pin, if it was opened.
func (p *VirtualBridge) Output(pin int) (*VirtualPWM, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out, found := p.outputs[pin]
	return out, found
}

func (p *VirtualBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, out := range p.outputs {
		out.Close()
	}
	return nil
}

// VirtualHistorySize is the number of duty cycles kept by a VirtualPWM.
const VirtualHistorySize = 1024

// VirtualPWM is an in-memory PWM output.
type VirtualPWM struct {
	mutex   sync.Mutex
	pin     string
	period  time.Duration
	duty    time.Duration
	enabled bool
	history []time.Duration
	// Number of duty cycles removed from the front of history
	dropped int
}

// SetPeriod sets the length of a single PWM period.
func (o *VirtualPWM) SetPeriod(period time.Duration) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if period <= 0 {
		pwmWriteErrorCounters.WithLabelValues(o.pin).Inc()
		return fmt.Errorf("Invalid period %s", period)
	}
	pwmWriteCounters.WithLabelValues(o.pin).Inc()
	o.period = period
	return nil
}

// SetDutyCycle sets the high time of each period.
func (o *VirtualPWM) SetDutyCycle(duty time.Duration) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if duty < 0 || duty > o.period {
		pwmWriteErrorCounters.WithLabelValues(o.pin).Inc()
		return fmt.Errorf("Duty cycle %s outside period %s", duty, o.period)
	}
	pwmWriteCounters.WithLabelValues(o.pin).Inc()
	o.duty = duty
	o.history = append(o.history, duty)
	if len(o.history) >= 2*VirtualHistorySize {
		n := len(o.history) - VirtualHistorySize
		o.dropped += n
		o.history = append(o.history[:0], o.history[n:]...)
	}
	return nil
}

// Enable turns the output on/off.
func (o *VirtualPWM) Enable(enabled bool) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.enabled = enabled
	return nil
}

// Close disables the output.
func (o *VirtualPWM) Close() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.enabled = false
	return nil
}

// State returns period, duty cycle & enabled state of the output.
func (o *VirtualPWM) State() (time.Duration, time.Duration, bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.period, o.duty, o.enabled
}

// History returns the last (up to VirtualHistorySize) duty cycles set on
// the output, together with the number of older duty cycles that are
// no longer available.
func (o *VirtualPWM) History() ([]time.Duration, int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	skip := 0
	if len(o.history) > VirtualHistorySize {
		skip = len(o.history) - VirtualHistorySize
	}
	return append([]time.Duration(nil), o.history[skip:]...), o.dropped + skip
}
