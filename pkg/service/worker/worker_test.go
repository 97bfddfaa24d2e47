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
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

type fakeSweeper struct {
	config  model.SweepConfig
	delays  []time.Duration
	cancel  context.CancelFunc
	stopAt  int
	results []error
}

func (s *fakeSweeper) SetConfig(config model.SweepConfig) error {
	s.config = config
	return nil
}

func (s *fakeSweeper) Sweep(ctx context.Context, cycleDelay time.Duration) error {
	s.delays = append(s.delays, cycleDelay)
	if len(s.delays) == s.stopAt {
		s.cancel()
	}
	if i := len(s.delays) - 1; i < len(s.results) {
		return s.results[i]
	}
	return nil
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw := &fakeSweeper{cancel: cancel, stopAt: 3, results: []error{errors.New("write failed")}}
	conf := model.DefaultSweepConfig()
	conf.UpperAngle = 120
	delay := 10 * time.Millisecond
	w, err := NewService(Config{Sweep: conf}, Dependencies{
		Log:        zerolog.Nop(),
		Sweeper:    sw,
		CycleDelay: func() time.Duration { delay *= 2; return delay },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Run(ctx); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if sw.config.UpperAngle != 120 {
		t.Errorf("expected config to be applied, got %+v", sw.config)
	}
	want := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
	if len(sw.delays) != 3 || sw.delays[0] != want[0] || sw.delays[2] != want[2] {
		t.Errorf("unexpected delays %v", sw.delays)
	}
}

func TestRunStopsWhenNotInitialized(t *testing.T) {
	sw := &fakeSweeper{cancel: func() {}, results: []error{pkgerrors.WithStack(sweep.ErrNotInitialized)}}
	w, _ := NewService(Config{Sweep: model.DefaultSweepConfig()}, Dependencies{Log: zerolog.Nop(), Sweeper: sw})
	err := w.Run(context.Background())
	if pkgerrors.Cause(err) != sweep.ErrNotInitialized {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if len(sw.delays) != 1 || sw.delays[0] != 0 {
		t.Errorf("unexpected delays %v", sw.delays)
	}
}
