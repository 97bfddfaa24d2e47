//    Copyright 2021 Ewout Prangsma
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
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/service/worker"
)

const (
	workerSemWarnTimeout = time.Second * 10
)

var (
	lastWorkerID uint32
)

// runWorkers keeps creating and running sweep workers until the given context is cancelled.
// Every configuration change stops the current worker and starts a new one.
// The new worker waits until the current worker has finished its sweep.
func (s *service) runWorkers(ctx context.Context, configChanged <-chan *model.SweepConfig) {
	log := s.Logger.With().Str("component", "worker-runner").Logger()
	var cancel context.CancelFunc
	for {
		var conf *model.SweepConfig
		select {
		case c := <-configChanged:
			// Start/restart worker
			if c == nil {
				log.Warn().Msg("Received nil configuration")
				continue
			}
			conf = c
			log.Debug().Msg("Configuration changed")
			if cancel != nil {
				cancel()
			}
		case <-ctx.Done():
			// Context canceled
			log.Info().Msg("Worker context canceled. Stopping worker (if any)")
			if cancel != nil {
				cancel()
			}
			// Wait for the sweep in progress to finish
			if err := s.WorkerSem.Acquire(context.Background(), 1); err == nil {
				s.WorkerSem.Release(1)
			}
			return
		}

		// Prepare new worker
		var lctx context.Context
		lctx, cancel = context.WithCancel(ctx)
		workerID := atomic.AddUint32(&lastWorkerID, 1)
		log := log.With().Uint32("worker-id", workerID).Logger()
		workerCountTotal.Inc()
		go func(ctx context.Context, log zerolog.Logger, conf model.SweepConfig, workerID uint32) {
			// Acquire the semaphore
			log.Debug().Msg("Acquiring worker semaphore...")
			if !s.acquireWorkerSem(ctx, log) {
				return
			}
			// Release semaphore when worker is done.
			defer func() {
				log.Debug().Msg("Releasing worker semaphore...")
				s.WorkerSem.Release(1)
				log.Debug().Msg("Released worker semaphore.")
			}()
			log.Debug().Msg("Acquired worker semaphore.")

			// Check context cancelation
			if err := ctx.Err(); err != nil {
				log.Debug().Err(err).Msg("Worker context canceled before we started")
				return
			}

			// Run the worker
			currentWorkerIDGauge.Set(float64(workerID))
			s.runWorkerWithConfig(ctx, log, conf)
		}(lctx, log, *conf, workerID)
	}
}

// acquireWorkerSem waits for the worker semaphore.
// Returns false when the context was canceled first.
func (s *service) acquireWorkerSem(ctx context.Context, log zerolog.Logger) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, workerSemWarnTimeout)
	defer cancel()
	if err := s.WorkerSem.Acquire(timeoutCtx, 1); err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	// A long cycle delay keeps the previous worker busy
	log.Warn().Dur("cycle_delay", s.CycleDelay()).Msg("Still waiting for previous sweep to finish")
	if err := s.WorkerSem.Acquire(ctx, 1); err != nil {
		log.Debug().Err(err).Msg("Failed to acquire worker semaphore")
		return false
	}
	return true
}

// runWorkerWithConfig runs a worker with given config until the given context is cancelled.
func (s *service) runWorkerWithConfig(ctx context.Context, log zerolog.Logger, conf model.SweepConfig) {
	defer func() {
		if err := recover(); err != nil {
			log.Error().Interface("err", err).Msg("Recovered from panic")
		}
	}()
	for {
		log.Debug().Msg("Creating new worker service")
		w, err := worker.NewService(worker.Config{
			Sweep: conf,
		}, worker.Dependencies{
			Log:        log,
			Sweeper:    s.controller,
			CycleDelay: s.CycleDelay,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create worker")
			// Wait a bit and then retry
		} else {
			// Run worker
			log.Debug().Msg("start to run worker...")
			if err := w.Run(ctx); ctx.Err() != nil {
				log.Info().Msg("Worker ended with context cancellation")
				return
			} else if err != nil {
				log.Error().Err(err).Msg("Worker ended with unknown error")
			} else {
				log.Info().Msg("Worker ended without context cancellation")
			}
		}
		select {
		case <-ctx.Done():
			// Context canceled
			return
		case <-time.After(time.Second):
			// Retry
		}
	}
}
