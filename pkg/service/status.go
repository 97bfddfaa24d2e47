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
	"time"

	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

// Status of the sweeper
type Status struct {
	HostID         string      `json:"host_id"`
	ProgramVersion string      `json:"program_version"`
	Pin            int         `json:"pin"`
	DeviceType     string      `json:"device_type"`
	Attached       bool        `json:"attached"`
	Phase          sweep.Phase `json:"phase"`
	Angle          int         `json:"angle"`
	Sweeps         uint64      `json:"sweeps"`
	WriteErrors    uint64      `json:"write_errors"`
	// Duration of the last sweep, including its cycle delay
	LastSweepDuration time.Duration `json:"last_sweep_duration"`
	LastError         string        `json:"last_error,omitempty"`
	// Delay used after the next sweep
	CycleDelay time.Duration `json:"cycle_delay"`
	StartedAt  time.Time     `json:"started_at"`
}

// Status returns a snapshot of the sweeper state.
func (s *service) Status() Status {
	st := s.controller.Status()
	s.mutex.Lock()
	conf := s.currentConfig
	s.mutex.Unlock()
	return Status{
		HostID:            s.hostID,
		ProgramVersion:    s.ProgramVersion,
		Pin:               conf.Actuator.Pin,
		DeviceType:        string(conf.Device.Type),
		Attached:          s.actuator.Attached(),
		Phase:             st.Phase,
		Angle:             st.Angle,
		Sweeps:            st.Sweeps,
		WriteErrors:       st.WriteErrors,
		LastSweepDuration: st.LastDuration,
		LastError:         st.LastError,
		CycleDelay:        s.CycleDelay(),
		StartedAt:         s.startedAt,
	}
}
