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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegisterCounter(t *testing.T) {
	c := MustRegisterCounter("test", "counter_total", "Test counter")
	c.Inc()
	c.Add(2)
	if got := testutil.ToFloat64(c); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestMustRegisterCounterVec(t *testing.T) {
	c := MustRegisterCounterVec("test", "counter_vec_total", "Test counter vector", "pin")
	c.WithLabelValues("18").Inc()
	if got := testutil.ToFloat64(c.WithLabelValues("18")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(c.WithLabelValues("19")); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestMustRegisterDuplicatePanics(t *testing.T) {
	MustRegisterGauge("test", "dup_gauge", "Test gauge")
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	MustRegisterGauge("test", "dup_gauge", "Test gauge")
}
