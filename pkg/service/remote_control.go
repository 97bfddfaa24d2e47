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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/mqtt"
	"github.com/binkynet/ServoSweeper/pkg/service/util"
)

// parseCycleDelay parses a cycle delay command.
// The payload is either a number of milliseconds ("1500")
// or a duration ("1.5s").
func parseCycleDelay(payload []byte) (time.Duration, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, errors.Wrap(model.ValidationError, "Empty cycle delay")
	}
	var d time.Duration
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		if ms < 0 || ms > math.MaxInt64/int64(time.Millisecond) {
			return 0, errors.Wrapf(model.ValidationError, "Cycle delay out of range (%s ms)", text)
		}
		d = time.Duration(ms) * time.Millisecond
	} else if d, err = time.ParseDuration(text); err != nil {
		return 0, errors.Wrapf(model.ValidationError, "Invalid cycle delay '%s'", text)
	}
	if d < 0 {
		return 0, errors.Wrapf(model.ValidationError, "Cycle delay cannot be negative (%s)", d)
	}
	return d, nil
}

// runCycleDelaySubscriber subscribes to the cycle delay topic and applies
// every valid delay received on it, until the given context is canceled.
func (s *service) runCycleDelaySubscriber(ctx context.Context) error {
	topic := s.Sweeper.MQTT.CycleDelayTopic()
	log := s.Logger.With().Str("component", "cycle-delay-subscriber").Str("topic", topic).Logger()
	if err := util.UntilSucceeded(ctx, log, "Subscribe to cycle delay", func() error {
		return s.MQTT.Subscribe(ctx, topic, mqtt.QosDefault, func(payload []byte) {
			d, err := parseCycleDelay(payload)
			if err == nil {
				err = s.SetCycleDelay(d)
			}
			if err != nil {
				cycleDelayCommandErrorsTotal.Inc()
				log.Warn().Err(err).Msg("Ignoring cycle delay command")
			}
		})
	}); err != nil {
		// Context canceled
		return nil
	}
	log.Debug().Msg("Subscribed")
	<-ctx.Done()
	return nil
}
