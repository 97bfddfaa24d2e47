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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
)

var (
	// ErrNotInitialized is returned by Sweep when Init has not succeeded.
	ErrNotInitialized = errors.New("sweep controller not initialized")

	maskAny = errors.WithStack
)

// Actuator is the servo moved by the controller.
type Actuator interface {
	// Attach binds the servo to its PWM output.
	Attach(ctx context.Context) error
	// Write moves the servo to the given angle.
	Write(ctx context.Context, angle int) error
}

// Dependencies of the controller.
type Dependencies struct {
	Log      zerolog.Logger
	Actuator Actuator
	// Clock used for all delays. Defaults to the wall clock.
	Clock clock.Clock
}

// Controller moves a single servo back and forth.
type Controller struct {
	Dependencies

	// Serializes Init & Sweep
	runMutex sync.Mutex

	mutex  sync.RWMutex
	config model.SweepConfig
	status Status
	events *pubsub.PubSub
	// Sequence number of the last published event
	lastSeq atomic.Uint64
}

// NewController creates a controller that sweeps the given actuator
// along the given trajectory.
func NewController(config model.SweepConfig, deps Dependencies) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, maskAny(err)
	}
	if deps.Actuator == nil {
		return nil, errors.Wrap(model.ValidationError, "Actuator is nil")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	deps.Log = deps.Log.With().Str("component", "sweep").Logger()
	return &Controller{
		Dependencies: deps,
		config:       config,
		status:       Status{Phase: PhaseIdle},
		events:       pubsub.New(),
	}, nil
}

// Config returns the current trajectory configuration.
func (c *Controller) Config() model.SweepConfig {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.config
}

// SetConfig replaces the trajectory configuration.
// A sweep in progress completes with the old configuration.
func (c *Controller) SetConfig(config model.SweepConfig) error {
	if err := config.Validate(); err != nil {
		return maskAny(err)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.config = config
	return nil
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.status
}

// Init attaches the actuator.
// It must succeed before the first sweep. Calling it again
// attaches the actuator again with the same settings.
func (c *Controller) Init(ctx context.Context) error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if err := c.Actuator.Attach(ctx); err != nil {
		c.Log.Error().Err(err).Msg("Failed to attach servo")
		c.mutex.Lock()
		c.status.LastError = err.Error()
		c.mutex.Unlock()
		return errors.Wrap(err, "Init failed")
	}
	c.mutex.Lock()
	wasInitialized := c.status.Initialized
	c.status.Initialized = true
	c.mutex.Unlock()
	if !wasInitialized {
		c.Log.Info().Msg("Servo attached")
		c.publish(Event{Type: EventInitialized, Phase: PhaseIdle})
	}
	return nil
}

// Sweep moves the servo from the upper angle down to the lower angle,
// waits for the settle delay, moves it back up to the upper angle and
// finally waits for the given cycle delay.
// Sweep blocks until the whole sequence is done. Failing writes do not
// stop the sequence, they are returned together once it is done.
// Cancelation of the context does not stop or shorten the sequence.
// Its values are passed to the actuator writes.
func (c *Controller) Sweep(ctx context.Context, cycleDelay time.Duration) error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	ctx = context.WithoutCancel(ctx)

	c.mutex.RLock()
	initialized := c.status.Initialized
	conf := c.config
	c.mutex.RUnlock()

	if !initialized {
		return maskAny(ErrNotInitialized)
	}
	if cycleDelay < 0 {
		c.Log.Warn().Dur("cycle_delay", cycleDelay).Msg("Negative cycle delay, using 0")
		cycleDelay = 0
	}

	log := c.Log
	start := c.Clock.Now()
	var ae aerr.AggregateError
	writeErrors := 0
	var firstErr error
	write := func(angle int) {
		if err := c.Actuator.Write(ctx, angle); err != nil {
			if writeErrors == 0 {
				firstErr = err
			}
			writeErrors++
			writeErrorsTotal.Inc()
			log.Warn().Err(err).Int("angle", angle).Msg("Failed to write angle")
			ae.Add(errors.Wrapf(err, "angle %d", angle))
		} else {
			stepsTotal.Inc()
			currentAngle.Set(float64(angle))
		}
		c.mutex.Lock()
		c.status.Angle = angle
		c.mutex.Unlock()
	}

	log.Debug().Int("from", conf.UpperAngle).Int("to", conf.LowerAngle).Msg("Sweep started")

	// Backward
	c.setPhase(PhaseBackward)
	for angle := conf.UpperAngle; angle >= conf.LowerAngle; angle-- {
		write(angle)
		c.sleep(conf.BackwardStepDelay)
	}

	// Settle
	c.setPhase(PhaseSettle)
	c.sleep(conf.SettleDelay)

	// Forward
	c.setPhase(PhaseForward)
	for angle := conf.LowerAngle; angle <= conf.UpperAngle; angle++ {
		write(angle)
		c.sleep(conf.ForwardStepDelay)
	}

	// Pause until the next sweep
	c.setPhase(PhaseCycleDelay)
	c.sleep(cycleDelay)

	duration := c.Clock.Since(start)
	sweepsTotal.Inc()
	sweepDuration.Observe(duration.Seconds())

	c.mutex.Lock()
	c.status.Phase = PhaseIdle
	c.status.Sweeps++
	c.status.WriteErrors += uint64(writeErrors)
	c.status.LastDuration = duration
	c.status.CycleDelay = cycleDelay
	if writeErrors > 0 {
		c.status.LastError = fmt.Sprintf("%d write errors, first: %s", writeErrors, firstErr)
	}
	sweeps := c.status.Sweeps
	angle := c.status.Angle
	c.mutex.Unlock()

	log.Debug().
		Uint64("sweep", sweeps).
		Dur("duration", duration).
		Int("write_errors", writeErrors).
		Msg("Sweep completed")
	c.publish(Event{
		Type:        EventSweepCompleted,
		Phase:       PhaseIdle,
		Angle:       angle,
		Sweep:       sweeps,
		WriteErrors: writeErrors,
		Duration:    duration,
	})
	return ae.AsError()
}

// setPhase records the given phase and notifies all receivers.
func (c *Controller) setPhase(phase Phase) {
	c.mutex.Lock()
	c.status.Phase = phase
	angle := c.status.Angle
	sweep := c.status.Sweeps + 1
	c.mutex.Unlock()

	c.publish(Event{Type: EventPhaseChanged, Phase: phase, Angle: angle, Sweep: sweep})
}

// sleep for the given duration. Zero or negative durations do not sleep at all.
func (c *Controller) sleep(d time.Duration) {
	if d > 0 {
		c.Clock.Sleep(d)
	}
}
