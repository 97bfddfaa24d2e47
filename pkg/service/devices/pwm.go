// Copyright 2020 Ewout Prangsma
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
	"time"
)

// PWM contains the API that is supported by all pulse width modulation devices.
// A PWM device drives a single servo signal.
type PWM interface {
	Device
	// SetFrequency sets the carrier frequency of the output in Hz.
	SetFrequency(ctx context.Context, hz uint32) error
	// SetPulseWidth sets the high time of each period.
	// A zero width disables the output.
	SetPulseWidth(ctx context.Context, width time.Duration) error
	// PulseWidth returns the last pulse width set on the output.
	PulseWidth(ctx context.Context) (time.Duration, error)
}
