// Copyright 2021 Ewout Prangsma
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

package util

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	minBackoff = time.Millisecond * 10
	maxBackoff = time.Second * 5
)

// backoff returns the delay to use after the given delay failed.
func backoff(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * 1.5)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// UntilCanceled keeps calling the given callback until the context is canceled.
// Failures are logged and delay the next call with an increasing backoff.
func UntilCanceled(ctx context.Context, log zerolog.Logger, description string, cb func() error) error {
	delay := minBackoff
	for {
		if ctx.Err() != nil {
			// Context canceled
			return nil
		}
		if err := cb(); err != nil {
			log.Warn().Err(err).Msgf("%s failed", description)
			delay = backoff(delay)
		} else {
			delay = minBackoff
		}
		select {
		case <-ctx.Done():
			// Context canceled
			log.Info().Msgf("Stopping %s; context canceled", description)
			return nil
		case <-time.After(delay):
			// Continue
		}
	}
}

// UntilSucceeded calls the given callback until it succeeds, using the
// same backoff as UntilCanceled between failures.
// Returns the context error when the context is canceled first.
func UntilSucceeded(ctx context.Context, log zerolog.Logger, description string, cb func() error) error {
	delay := minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := cb()
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Dur("retry_in", delay).Msgf("%s failed", description)
		select {
		case <-ctx.Done():
			// Context canceled
			return ctx.Err()
		case <-time.After(delay):
			delay = backoff(delay)
		}
	}
}
