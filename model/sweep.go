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
	DefaultUpperAngle        = 176
	DefaultLowerAngle        = 45
	DefaultBackwardStepDelay = time.Millisecond
	DefaultForwardStepDelay  = time.Duration(0)
	DefaultSettleDelay       = 300 * time.Millisecond
	DefaultCycleDelay        = time.Duration(0)
)

// SweepConfig holds the trajectory and timing of a sweep.
// A sweep runs from UpperAngle down to LowerAngle, settles and
// then runs back up to UpperAngle.
type SweepConfig struct {
	// Angle at which every sweep starts and ends
	UpperAngle int `json:"upper_angle" yaml:"upper_angle"`
	// Angle at which a sweep turns around
	LowerAngle int `json:"lower_angle" yaml:"lower_angle"`
	// Pause after each step of the backward phase
	BackwardStepDelay time.Duration `json:"backward_step_delay" yaml:"backward_step_delay"`
	// Pause after each step of the forward phase
	ForwardStepDelay time.Duration `json:"forward_step_delay" yaml:"forward_step_delay"`
	// Pause between the backward and forward phase
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`
	// Pause after every sweep, when sweeping continuously
	CycleDelay time.Duration `json:"cycle_delay" yaml:"cycle_delay"`
}

// DefaultSweepConfig returns a sweep between 176 and 45 degrees
// with a 1ms backward step delay and a 300ms settle delay.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		UpperAngle:        DefaultUpperAngle,
		LowerAngle:        DefaultLowerAngle,
		BackwardStepDelay: DefaultBackwardStepDelay,
		ForwardStepDelay:  DefaultForwardStepDelay,
		SettleDelay:       DefaultSettleDelay,
		CycleDelay:        DefaultCycleDelay,
	}
}

// StepsPerPhase returns the number of angles written in each phase.
func (c SweepConfig) StepsPerPhase() int {
	return c.UpperAngle - c.LowerAngle + 1
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c SweepConfig) Validate() error {
	if c.LowerAngle < MinAngle || c.UpperAngle > MaxAngle {
		return errors.Wrapf(ValidationError, "Sweep range %d-%d outside %d-%d", c.LowerAngle, c.UpperAngle, MinAngle, MaxAngle)
	}
	if c.LowerAngle > c.UpperAngle {
		return errors.Wrapf(ValidationError, "Lower angle %d exceeds upper angle %d", c.LowerAngle, c.UpperAngle)
	}
	if c.BackwardStepDelay < 0 || c.ForwardStepDelay < 0 {
		return errors.Wrap(ValidationError, "Step delays cannot be negative")
	}
	if c.SettleDelay < 0 {
		return errors.Wrap(ValidationError, "Settle delay cannot be negative")
	}
	if c.CycleDelay < 0 {
		return errors.Wrap(ValidationError, "Cycle delay cannot be negative")
	}
	return nil
}
