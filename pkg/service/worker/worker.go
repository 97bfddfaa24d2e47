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

package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

// Service runs sweeps back to back.
type Service interface {
	// Run the worker service until the given context is cancelled.
	// A sweep in progress is always completed.
	Run(ctx context.Context) error
}

// Sweeper is implemented by the sweep controller.
type Sweeper interface {
	SetConfig(config model.SweepConfig) error
	Sweep(ctx context.Context, cycleDelay time.Duration) error
}

type Config struct {
	Sweep model.SweepConfig
}

type Dependencies struct {
	Log     zerolog.Logger
	Sweeper Sweeper
	// CycleDelay returns the delay to use after the next sweep.
	CycleDelay func() time.Duration
}

func NewService(config Config, deps Dependencies) (Service, error) {
	if deps.Sweeper == nil {
		return nil, errors.Wrap(model.ValidationError, "Sweeper is nil")
	}
	if deps.CycleDelay == nil {
		cycleDelay := config.Sweep.CycleDelay
		deps.CycleDelay = func() time.Duration { return cycleDelay }
	}
	return &service{
		config:       config,
		Dependencies: deps,
	}, nil
}

type service struct {
	config Config
	Dependencies
}

func (s *service) Run(ctx context.Context) error {
	log := s.Log
	if err := s.Sweeper.SetConfig(s.config.Sweep); err != nil {
		return errors.Wrap(err, "SetConfig failed")
	}
	log.Debug().
		Int("upper", s.config.Sweep.UpperAngle).
		Int("lower", s.config.Sweep.LowerAngle).
		Msg("start sweeping")
	for {
		if ctx.Err() != nil {
			log.Debug().Msg("stop sweeping")
			return nil
		}
		if err := s.Sweeper.Sweep(ctx, s.CycleDelay()); err != nil {
			if errors.Cause(err) == sweep.ErrNotInitialized {
				return errors.Wrap(err, "Sweep failed")
			}
			log.Warn().Err(err).Msg("Sweep completed with errors")
		}
	}
}
