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

import (
	"context"
	"time"
)

// EventType identifies the kind of event
type EventType string

const (
	// The actuator has been attached for the first time
	EventInitialized EventType = "initialized"
	// The controller entered a new phase
	EventPhaseChanged EventType = "phase_changed"
	// A sweep has been completed
	EventSweepCompleted EventType = "sweep_completed"
)

// Event is published by the controller on every phase change
// and after every sweep.
type Event struct {
	// Sequence number, increasing by 1 for every published event
	Seq   uint64    `json:"seq"`
	Type  EventType `json:"type"`
	Phase Phase     `json:"phase"`
	Angle int       `json:"angle"`
	// Number of the sweep the event belongs to (1...)
	Sweep       uint64        `json:"sweep,omitempty"`
	WriteErrors int           `json:"write_errors,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Time        time.Time     `json:"time"`
}

// publish the given event to all receivers.
func (c *Controller) publish(evt Event) {
	evt.Seq = c.lastSeq.Add(1)
	evt.Time = c.Clock.Now()
	c.events.Pub(evt)
}

// RegisterEventReceiver registers a callback that is invoked
// (asynchronously) for every event.
// Events may reach the callback out of order, use Seq to order them.
// Receivers are identified by the code of the callback wrapper, so
// canceling removes all receivers registered through this method.
func (c *Controller) RegisterEventReceiver(cb func(Event) error) context.CancelFunc {
	wcb := func(evt Event) {
		if err := cb(evt); err != nil {
			c.Log.Warn().Err(err).Str("event", string(evt.Type)).Msg("Event processing error")
		}
	}
	c.events.Sub(wcb)
	return func() {
		c.events.Leave(wcb)
	}
}
