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
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/binkynet/ServoSweeper/pkg/mqtt"
	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

const (
	// Number of events that can wait for publication
	statusQueueSize = 256
	// Time to wait for a missing event before publishing the ones after it
	statusGapTimeout = time.Millisecond * 100
)

type statusMessage struct {
	Event  sweep.Event `json:"event"`
	Status Status      `json:"status"`
}

// eventOrder restores the publication order of events that arrive
// out of order. Events older than the last released one are dropped.
type eventOrder struct {
	last    uint64
	pending []sweep.Event
}

// add an event and return all events that are now in order.
func (o *eventOrder) add(evt sweep.Event) []sweep.Event {
	if evt.Seq <= o.last {
		return nil
	}
	o.pending = append(o.pending, evt)
	sort.Slice(o.pending, func(i, j int) bool { return o.pending[i].Seq < o.pending[j].Seq })
	var result []sweep.Event
	for len(o.pending) > 0 && o.pending[0].Seq == o.last+1 {
		result = append(result, o.pending[0])
		o.last = o.pending[0].Seq
		o.pending = o.pending[1:]
	}
	return result
}

// flush returns all pending events, skipping over gaps.
func (o *eventOrder) flush() []sweep.Event {
	result := o.pending
	if len(result) > 0 {
		o.last = result[len(result)-1].Seq
	}
	o.pending = nil
	return result
}

// newStatusMessage builds the message for the given event.
// The phase & angle are taken from the event, so the status
// matches the moment the event was published.
func (s *service) newStatusMessage(evt sweep.Event) statusMessage {
	st := s.Status()
	st.Phase = evt.Phase
	st.Angle = evt.Angle
	return statusMessage{Event: evt, Status: st}
}

// runStatusPublisher publishes all sweep events in order with the
// current status on the MQTT status topic, until the given context is canceled.
func (s *service) runStatusPublisher(ctx context.Context) error {
	topic := s.Sweeper.MQTT.StatusTopic()
	log := s.Logger.With().Str("component", "status-publisher").Str("topic", topic).Logger()
	queue := make(chan sweep.Event, statusQueueSize)
	cancel := s.controller.RegisterEventReceiver(func(evt sweep.Event) error {
		select {
		case queue <- evt:
			return nil
		default:
			statusPublishErrorsTotal.Inc()
			return errors.Errorf("Status queue full, dropping event %d", evt.Seq)
		}
	})
	defer cancel()
	log.Debug().Msg("Publishing status")

	publish := func(events []sweep.Event) {
		for _, evt := range events {
			if err := s.MQTT.Publish(ctx, s.newStatusMessage(evt), topic, mqtt.QosDefault); err != nil {
				statusPublishErrorsTotal.Inc()
				log.Debug().Err(err).Uint64("seq", evt.Seq).Msg("Failed to publish status")
			}
		}
	}
	var order eventOrder
	var gap <-chan time.Time
	for {
		select {
		case evt := <-queue:
			publish(order.add(evt))
		case <-gap:
			// Missing events are not coming anymore
			publish(order.flush())
		case <-ctx.Done():
			return nil
		}
		if len(order.pending) == 0 {
			gap = nil
		} else if gap == nil {
			gap = time.After(statusGapTimeout)
		}
	}
}
