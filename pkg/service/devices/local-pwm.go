// Copyright 2026 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/binkynet/ServoSweeper/pkg/service/bridge"
)

type localPWM struct {
	mutex    sync.Mutex
	onActive func()
	pin      int
	api      bridge.API
	output   bridge.PWMOutput
	period   time.Duration
	width    time.Duration
	enabled  bool
}

// newLocalPWM creates a PWM device for a hardware PWM output of the bridge.
func newLocalPWM(pin int, api bridge.API, onActive func()) (PWM, error) {
	if api == nil {
		return nil, fmt.Errorf("no bridge available for local PWM on pin %d", pin)
	}
	if !api.SupportsPWM(pin) {
		return nil, errors.Wrapf(bridge.ErrNoHardwarePWM, "Pin %d cannot be used by a local device, set actuator.pin", pin)
	}
	return &localPWM{
		onActive: onActive,
		pin:      pin,
		api:      api,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *localPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.output != nil {
		return nil
	}
	output, err := d.api.PWM(d.pin)
	if err != nil {
		return errors.Wrapf(err, "Failed to open PWM output on pin %d", d.pin)
	}
	d.output = output
	d.onActive()
	return nil
}

// Close brings the device back to a safe state.
func (d *localPWM) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.output == nil {
		return nil
	}
	err := d.output.Close()
	d.output = nil
	d.enabled = false
	d.onActive()
	return maskAny(err)
}

// SetFrequency sets the carrier frequency of the output in Hz.
func (d *localPWM) SetFrequency(ctx context.Context, hz uint32) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.output == nil {
		return maskAny(ErrNotConfigured)
	}
	if hz == 0 {
		return fmt.Errorf("invalid frequency 0Hz")
	}
	period := time.Second / time.Duration(hz)
	if err := d.output.SetPeriod(period); err != nil {
		commandErrorsTotal.WithLabelValues("local").Inc()
		return errors.Wrapf(err, "Failed to set period of pin %d", d.pin)
	}
	d.period = period
	d.onActive()
	return nil
}

// SetPulseWidth sets the high time of each period.
// A zero width disables the output.
func (d *localPWM) SetPulseWidth(ctx context.Context, width time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.output == nil {
		return maskAny(ErrNotConfigured)
	}
	if width <= 0 {
		if err := d.output.Enable(false); err != nil {
			commandErrorsTotal.WithLabelValues("local").Inc()
			return maskAny(err)
		}
		d.enabled = false
		d.width = 0
		return nil
	}
	if d.period == 0 {
		return fmt.Errorf("frequency of pin %d not set", d.pin)
	}
	width = lo.Clamp(width, 0, d.period)
	if err := d.output.SetDutyCycle(width); err != nil {
		commandErrorsTotal.WithLabelValues("local").Inc()
		return errors.Wrapf(err, "Failed to set pulse width of pin %d", d.pin)
	}
	d.width = width
	pulseWidthChangesTotal.WithLabelValues("local").Inc()
	if !d.enabled {
		if err := d.output.Enable(true); err != nil {
			commandErrorsTotal.WithLabelValues("local").Inc()
			return errors.Wrapf(err, "Failed to enable pin %d", d.pin)
		}
		d.enabled = true
		d.onActive()
	}
	return nil
}

// PulseWidth returns the last pulse width set on the output.
func (d *localPWM) PulseWidth(ctx context.Context) (time.Duration, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.output == nil {
		return 0, maskAny(ErrNotConfigured)
	}
	return d.width, nil
}
