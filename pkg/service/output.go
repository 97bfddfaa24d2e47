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

package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/binkynet/ServoSweeper/pkg/service/devices"
)

var (
	maskAny = errors.WithStack
)

// deviceOutput forwards servo output to the PWM device of the
// device service, once that is configured.
type deviceOutput struct {
	devices devices.Service
}

func (o deviceOutput) SetFrequency(ctx context.Context, hz uint32) error {
	pwm, err := o.devices.PWM()
	if err != nil {
		return maskAny(err)
	}
	return pwm.SetFrequency(ctx, hz)
}

func (o deviceOutput) SetPulseWidth(ctx context.Context, width time.Duration) error {
	pwm, err := o.devices.PWM()
	if err != nil {
		return maskAny(err)
	}
	return pwm.SetPulseWidth(ctx, width)
}
