//    Copyright 2017-2022 Ewout Prangsma
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
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/mqtt"
	"github.com/binkynet/ServoSweeper/pkg/service/bridge"
	"github.com/binkynet/ServoSweeper/pkg/service/devices"
	"github.com/binkynet/ServoSweeper/pkg/service/util"
	"github.com/binkynet/ServoSweeper/pkg/servo"
	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

type Service interface {
	// Run the sweeper until the given context is cancelled.
	Run(ctx context.Context) error
	// Status returns a snapshot of the sweeper state.
	Status() Status
	// Attached returns true when the servo is attached.
	Attached() bool
	// CycleDelay returns the delay between two sweeps.
	CycleDelay() time.Duration
	// SetCycleDelay changes the delay between two sweeps.
	// It is used from the next sweep on.
	SetCycleDelay(d time.Duration) error
	// RegisterEventReceiver registers a callback for all sweep events.
	RegisterEventReceiver(cb func(sweep.Event) error) context.CancelFunc
}

type Config struct {
	// Configuration of the sweeper
	Sweeper model.Config
	// Path of the configuration file, watched for changes when set
	ConfigPath string
	// Optional settings (from the command line) applied to every
	// configuration loaded from ConfigPath
	Overrides      func(conf *model.Config)
	ProgramVersion string
	HostID         string // Only used if not empty
}

type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	// Optional MQTT service used to publish status messages
	MQTT  mqtt.Service
	Clock clock.Clock
	// Semaphore used to guard from running multiple sweep loops
	// concurrently.
	WorkerSem *semaphore.Weighted
}

type service struct {
	Config
	Dependencies

	hostID     string
	startedAt  time.Time
	devices    devices.Service
	actuator   *servo.Actuator
	controller *sweep.Controller
	cycleDelay int64 // time.Duration, atomic

	mutex         sync.Mutex
	currentConfig model.Config
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if err := conf.Sweeper.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.WorkerSem == nil {
		deps.WorkerSem = semaphore.NewWeighted(1)
	}
	// Create host ID
	hostID := conf.HostID
	if hostID == "" {
		var err error
		hostID, err = os.Hostname()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to get hostname")
		}
	}
	deps.Logger = deps.Logger.With().Str("host-id", hostID).Logger()

	actuatorConf := conf.Sweeper.Actuator
	devService, err := devices.NewService(conf.Sweeper.Device, actuatorConf.Pin, conf.Sweeper.MQTT,
		"servosweeper-"+hostID, deps.Bridge, deps.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create device service")
	}
	actuator, err := servo.New(actuatorConf, deviceOutput{devices: devService})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create actuator")
	}
	controller, err := sweep.NewController(conf.Sweeper.Sweep, sweep.Dependencies{
		Log:      deps.Logger,
		Actuator: actuator,
		Clock:    deps.Clock,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create sweep controller")
	}
	return &service{
		Config:        conf,
		Dependencies:  deps,
		hostID:        hostID,
		startedAt:     deps.Clock.Now(),
		devices:       devService,
		actuator:      actuator,
		controller:    controller,
		cycleDelay:    int64(conf.Sweeper.Sweep.CycleDelay),
		currentConfig: conf.Sweeper,
	}, nil
}

// Run initializes the servo and then keeps sweeping it
// until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	defer func() {
		log.Debug().Msg("closing devices service")
		if err := s.devices.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close devices")
		}
	}()

	// Attach the servo
	s.Bridge.BlinkGreenLED(time.Millisecond * 250)
	s.Bridge.SetRedLED(false)
	if err := util.UntilSucceeded(ctx, log, "Initialize servo", func() error {
		if err := s.devices.Configure(ctx); err != nil {
			initFailuresTotal.Inc()
			s.Bridge.SetRedLED(true)
			return errors.Wrap(err, "Configure device failed")
		}
		if err := s.controller.Init(ctx); err != nil {
			initFailuresTotal.Inc()
			s.Bridge.SetRedLED(true)
			return maskAny(err)
		}
		return nil
	}); err != nil {
		// Context canceled
		return nil
	}
	s.Bridge.SetRedLED(false)
	log.Info().
		Int("pin", s.Sweeper.Actuator.Pin).
		Uint32("frequency", s.Sweeper.Actuator.FrequencyHz).
		Msg("Servo initialized")

	configChanged := make(chan *model.SweepConfig)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.devices.Run(ctx)
	})
	g.Go(func() error {
		s.runWorkers(ctx, configChanged)
		return nil
	})
	g.Go(func() error {
		initial := s.Sweeper.Sweep
		select {
		case configChanged <- &initial:
		case <-ctx.Done():
			return nil
		}
		if s.ConfigPath == "" {
			return nil
		}
		return util.UntilCanceled(ctx, log, "Watch configuration", func() error {
			return s.watchConfig(ctx, configChanged)
		})
	})
	if s.MQTT != nil {
		g.Go(func() error {
			return s.runStatusPublisher(ctx)
		})
		g.Go(func() error {
			return s.runCycleDelaySubscriber(ctx)
		})
	}
	return g.Wait()
}

// Attached returns true when the servo is attached.
func (s *service) Attached() bool {
	return s.actuator.Attached()
}

// CycleDelay returns the delay between two sweeps.
func (s *service) CycleDelay() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.cycleDelay))
}

// SetCycleDelay changes the delay between two sweeps.
func (s *service) SetCycleDelay(d time.Duration) error {
	if d < 0 {
		return errors.Wrapf(model.ValidationError, "Cycle delay cannot be negative (%s)", d)
	}
	old := time.Duration(atomic.SwapInt64(&s.cycleDelay, int64(d)))
	if old != d {
		cycleDelayChangesTotal.Inc()
		s.Logger.Info().Dur("cycle_delay", d).Msg("Cycle delay changed")
	}
	return nil
}

// RegisterEventReceiver registers a callback for all sweep events.
func (s *service) RegisterEventReceiver(cb func(sweep.Event) error) context.CancelFunc {
	return s.controller.RegisterEventReceiver(cb)
}
