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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/binkynet/ServoSweeper/pkg/metrics"
)

const (
	subSystem = "sweep"
)

var (
	// Total number of completed sweeps
	sweepsTotal = metrics.MustRegisterCounter(subSystem,
		"completed_total",
		"Total number of completed sweeps")
	// Total number of successful angle writes
	stepsTotal = metrics.MustRegisterCounter(subSystem,
		"steps_total",
		"Total number of angles written")
	// Total number of failed angle writes
	writeErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"write_errors_total",
		"Total number of failed angle writes")
	// Last angle written
	currentAngle = metrics.MustRegisterGauge(subSystem,
		"angle_degrees",
		"Last angle written to the servo")
	// Duration of a sweep including its cycle delay
	sweepDuration = metrics.MustRegisterHistogram(subSystem,
		"duration_seconds",
		"Duration of a sweep including its cycle delay",
		prometheus.ExponentialBuckets(0.25, 2, 8))
)
