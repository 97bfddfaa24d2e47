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
	"github.com/binkynet/ServoSweeper/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Total number of failed servo initializations
	initFailuresTotal = metrics.MustRegisterCounter(subSystem,
		"init_failures_total",
		"Total number of failed servo initializations")
	// Total number of changed configurations loaded
	configurationChangesTotal = metrics.MustRegisterCounter(subSystem,
		"configuration_changes_total",
		"Total number of changed configurations loaded")
	// Total number of invalid configurations loaded
	configurationErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"configuration_errors_total",
		"Total number of invalid configurations loaded")
	// Total number of cycle delay changes
	cycleDelayChangesTotal = metrics.MustRegisterCounter(subSystem,
		"cycle_delay_changes_total",
		"Total number of cycle delay changes")
	// Total number of failed status messages
	statusPublishErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"status_publish_errors_total",
		"Total number of status messages that could not be published")
	// Total number of invalid remote cycle delay commands
	cycleDelayCommandErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"cycle_delay_command_errors_total",
		"Total number of invalid cycle delay commands received over MQTT")
	// ID of current worker
	currentWorkerIDGauge = metrics.MustRegisterGauge(subSystem,
		"worker_id",
		"ID of current sweep worker")
	// Total number of workers, ever created
	workerCountTotal = metrics.MustRegisterCounter(subSystem,
		"worker_count_total",
		"Total number of sweep workers created")
)
