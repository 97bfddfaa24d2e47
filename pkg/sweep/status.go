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

package sweep

import "time"

// Phase of a sweep
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBackward   Phase = "backward"
	PhaseSettle     Phase = "settle"
	PhaseForward    Phase = "forward"
	PhaseCycleDelay Phase = "cycle_delay"
)

// Status of the controller
type Status struct {
	// Set once Init succeeded
	Initialized bool  `json:"initialized"`
	Phase       Phase `json:"phase"`
	// Last angle commanded
	Angle int `json:"angle"`
	// Number of completed sweeps
	Sweeps uint64 `json:"sweeps"`
	// Number of failed writes over all sweeps
	WriteErrors  uint64        `json:"write_errors"`
	LastDuration time.Duration `json:"last_duration"`
	// Cycle delay used by the last sweep
	CycleDelay time.Duration `json:"cycle_delay"`
	LastError  string        `json:"last_error,omitempty"`
}
