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

//go:build linux

package bridge

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	// Resolution of the BCM PWM output.
	// The PWM clock runs at 1/rpioTick, so each cycle unit is one tick.
	rpioTick = time.Microsecond
)

// rpioPWM drives a BCM2835 hardware PWM channel through go-rpio.
// rpio.Open must have been called.
type rpioPWM struct {
	mutex   sync.Mutex
	pin     rpio.Pin
	label   string
	cycle   uint32
	duty    uint32
	enabled bool
}

func openRpioPWM(pin int) (*rpioPWM, error) {
	if _, found := pwmChannel(pin); !found {
		return nil, errors.Wrapf(ErrNoHardwarePWM, "Pin %d", pin)
	}
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(int(time.Second / rpioTick))
	return &rpioPWM{
		pin:   p,
		label: strconv.Itoa(pin),
	}, nil
}

// SetPeriod sets the length of a single PWM period.
func (o *rpioPWM) SetPeriod(period time.Duration) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if period < rpioTick {
		pwmWriteErrorCounters.WithLabelValues(o.label).Inc()
		return fmt.Errorf("Invalid period %s", period)
	}
	o.cycle = uint32(period / rpioTick)
	if o.duty > o.cycle {
		o.duty = o.cycle
	}
	o.apply()
	return nil
}

// SetDutyCycle sets the high time of each period.
func (o *rpioPWM) SetDutyCycle(duty time.Duration) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	ticks := uint32(duty / rpioTick)
	if duty < 0 || ticks > o.cycle {
		pwmWriteErrorCounters.WithLabelValues(o.label).Inc()
		return fmt.Errorf("Duty cycle %s outside period of %d ticks", duty, o.cycle)
	}
	o.duty = ticks
	o.apply()
	return nil
}

// Enable turns the output on/off.
func (o *rpioPWM) Enable(enabled bool) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.enabled = enabled
	o.apply()
	return nil
}

// Close disables the output.
func (o *rpioPWM) Close() error {
	return o.Enable(false)
}

// apply writes the current state into the PWM registers.
// Mutex must be held.
func (o *rpioPWM) apply() {
	if o.cycle == 0 {
		return
	}
	duty := o.duty
	if !o.enabled {
		duty = 0
	}
	o.pin.DutyCycleWithPwmMode(duty, o.cycle, rpio.MarkSpace)
	pwmWriteCounters.WithLabelValues(o.label).Inc()
}
