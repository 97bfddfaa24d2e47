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

package servo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/binkynet/ServoSweeper/model"
)

var (
	// ErrNotAttached is returned when writing to an actuator that is
	// not attached.
	ErrNotAttached = errors.New("servo not attached")

	maskAny = errors.WithStack
)

// Output is the PWM output that generates the servo signal.
type Output interface {
	// SetFrequency sets the carrier frequency of the output in Hz.
	SetFrequency(ctx context.Context, hz uint32) error
	// SetPulseWidth sets the high time of each period.
	SetPulseWidth(ctx context.Context, width time.Duration) error
}

// Actuator is the handle of a single servo bound to a PWM output.
// It maps angles (0-180 degrees) onto the configured pulse range.
type Actuator struct {
	config model.ActuatorConfig
	output Output

	mutex    sync.Mutex
	attached bool
	angle    int
	hasAngle bool
	pulse    time.Duration
}

// New creates an actuator for the given binding.
// It must be attached before writing to it.
func New(config model.ActuatorConfig, output Output) (*Actuator, error) {
	if err := config.Validate(); err != nil {
		return nil, maskAny(err)
	}
	if output == nil {
		return nil, errors.Wrap(model.ValidationError, "Output is nil")
	}
	return &Actuator{
		config: config,
		output: output,
	}, nil
}

// Config returns the binding of the actuator.
func (a *Actuator) Config() model.ActuatorConfig {
	return a.config
}

// Attach sets the carrier frequency of the output and binds it to
// the pulse range. Attaching an attached actuator applies the same
// settings again.
func (a *Actuator) Attach(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.output.SetFrequency(ctx, a.config.FrequencyHz); err != nil {
		return errors.Wrapf(err, "Failed to attach servo on pin %d", a.config.Pin)
	}
	a.attached = true
	return nil
}

// Attached returns true once Attach succeeded.
func (a *Actuator) Attached() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.attached
}

// Write moves the servo to the given angle.
// Angles outside 0-180 are clamped.
func (a *Actuator) Write(ctx context.Context, angle int) error {
	angle = lo.Clamp(angle, model.MinAngle, model.MaxAngle)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.setPulseWidth(ctx, a.AngleToMicroseconds(angle)); err != nil {
		return maskAny(err)
	}
	a.angle = angle
	return nil
}

// WriteMicroseconds sets the pulse width of the servo signal.
// Widths outside the pulse range are clamped.
func (a *Actuator) WriteMicroseconds(ctx context.Context, us int) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	us = lo.Clamp(us, a.minMicroseconds(), a.maxMicroseconds())
	if err := a.setPulseWidth(ctx, us); err != nil {
		return maskAny(err)
	}
	a.angle = (us-a.minMicroseconds())*(model.MaxAngle-model.MinAngle)/(a.maxMicroseconds()-a.minMicroseconds()) + model.MinAngle
	return nil
}

// setPulseWidth writes the given width to the output.
// Caller must hold the mutex.
func (a *Actuator) setPulseWidth(ctx context.Context, us int) error {
	if !a.attached {
		return ErrNotAttached
	}
	width := time.Duration(us) * time.Microsecond
	if err := a.output.SetPulseWidth(ctx, width); err != nil {
		return errors.Wrapf(err, "Failed to set pulse width %dus", us)
	}
	a.pulse = width
	a.hasAngle = true
	return nil
}

// AngleToMicroseconds returns the pulse width for the given angle.
func (a *Actuator) AngleToMicroseconds(angle int) int {
	minUs, maxUs := a.minMicroseconds(), a.maxMicroseconds()
	return (angle-model.MinAngle)*(maxUs-minUs)/(model.MaxAngle-model.MinAngle) + minUs
}

func (a *Actuator) minMicroseconds() int { return int(a.config.MinPulse.Microseconds()) }
func (a *Actuator) maxMicroseconds() int { return int(a.config.MaxPulse.Microseconds()) }

// Read returns the last angle written to the servo.
// Returns false if nothing has been written yet.
func (a *Actuator) Read() (int, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.angle, a.hasAngle
}

// PulseWidth returns the last pulse width written to the servo.
func (a *Actuator) PulseWidth() time.Duration {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.pulse
}
