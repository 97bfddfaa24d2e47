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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/service/bridge"
)

// fastClock never blocks in Sleep, it only advances the mock time.
type fastClock struct {
	*clock.Mock
}

func (c fastClock) Sleep(d time.Duration) {
	c.Mock.Add(d)
}

type failingBridge struct {
	*bridge.VirtualBridge
}

func (b failingBridge) PWM(pin int) (bridge.PWMOutput, error) {
	return nil, errors.New("no PWM on this pin")
}

type fakeMQTT struct {
	mutex         sync.Mutex
	topics        []string
	seqs          []uint64
	subscriptions map[string]func([]byte)
}

func (m *fakeMQTT) Publish(ctx context.Context, msg interface{}, topic string, qos byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	sm, ok := msg.(statusMessage)
	if !ok {
		return errors.New("unexpected message type")
	}
	m.topics = append(m.topics, topic)
	m.seqs = append(m.seqs, sm.Event.Seq)
	return nil
}

func (m *fakeMQTT) Close() error { return nil }

func (m *fakeMQTT) Subscribe(ctx context.Context, topic string, qos byte, cb func([]byte)) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.subscriptions == nil {
		m.subscriptions = make(map[string]func([]byte))
	}
	m.subscriptions[topic] = cb
	return nil
}

func (m *fakeMQTT) subscription(topic string) func([]byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.subscriptions[topic]
}

func (m *fakeMQTT) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.topics)
}

func waitFor(t *testing.T, description string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", description)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testConfig() model.Config {
	conf := model.DefaultConfig()
	conf.Actuator.Pin = 18
	return conf
}

func newTestService(t *testing.T, conf Config, deps Dependencies) *service {
	t.Helper()
	if conf.HostID == "" {
		conf.HostID = "test"
	}
	deps.Logger = zerolog.Nop()
	if deps.Bridge == nil {
		vb, _ := bridge.NewVirtualBridge()
		deps.Bridge = vb
	}
	deps.Clock = fastClock{Mock: clock.NewMock()}
	svc, err := NewService(conf, deps)
	if err != nil {
		t.Fatal(err)
	}
	return svc.(*service)
}

func runService(t *testing.T, s *service) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	return cancel, done
}

func TestServiceRunSweeps(t *testing.T) {
	vb, _ := bridge.NewVirtualBridge()
	s := newTestService(t, Config{Sweeper: testConfig()}, Dependencies{Bridge: vb})
	cancel, done := runService(t, s)
	defer cancel()

	waitFor(t, "first sweep", func() bool { return s.Status().Sweeps >= 1 })
	if !s.Attached() {
		t.Error("expected servo to be attached")
	}
	out, found := vb.Output(18)
	if !found {
		t.Fatal("expected PWM output on pin 18")
	}
	history, dropped := out.History()
	if len(history) < 264 {
		t.Fatalf("expected at least 264 pulse widths, got %d", len(history))
	}
	// Find the start of a sweep: 176, 175 ... 45, 45 ... 176
	i := (264 - dropped%264) % 264
	if i+263 >= len(history) {
		t.Fatalf("no complete sweep in history of %d entries (%d dropped)", len(history), dropped)
	}
	if history[i] != 2073*time.Microsecond || history[i+131] != 1200*time.Microsecond || history[i+263] != 2073*time.Microsecond {
		t.Errorf("unexpected pulse widths %s, %s, %s", history[i], history[i+131], history[i+263])
	}
	if _, red := vb.LEDs(); red {
		t.Error("expected red led off")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	if _, _, enabled := out.State(); enabled {
		t.Error("expected output disabled after Run")
	}
}

func TestServiceInitFailure(t *testing.T) {
	vb, _ := bridge.NewVirtualBridge()
	s := newTestService(t, Config{Sweeper: testConfig()}, Dependencies{Bridge: failingBridge{vb}})
	cancel, done := runService(t, s)

	waitFor(t, "red led", func() bool {
		_, red := vb.LEDs()
		return red
	})
	if s.Attached() || s.Status().Attached {
		t.Error("expected servo not attached")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

// piBridge accepts PWM on the hardware PWM pins of a Raspberry Pi only.
type piBridge struct {
	*bridge.VirtualBridge
}

func (b piBridge) SupportsPWM(pin int) bool {
	return pin == 12 || pin == 13 || pin == 18 || pin == 19
}

func TestNewServiceRejectsPinWithoutPWM(t *testing.T) {
	vb, _ := bridge.NewVirtualBridge()
	_, err := NewService(Config{Sweeper: model.DefaultConfig(), HostID: "test"}, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: piBridge{vb},
	})
	if pkgerrors.Cause(err) != bridge.ErrNoHardwarePWM {
		t.Errorf("expected ErrNoHardwarePWM, got %v", err)
	}
}

func TestServicePublishesStatus(t *testing.T) {
	pub := &fakeMQTT{}
	conf := testConfig()
	s := newTestService(t, Config{Sweeper: conf}, Dependencies{MQTT: pub})
	cancel, done := runService(t, s)

	waitFor(t, "status messages", func() bool { return pub.count() >= 3 })
	cancel()
	<-done
	pub.mutex.Lock()
	defer pub.mutex.Unlock()
	if pub.topics[0] != "servosweeper/status" {
		t.Errorf("unexpected topic %q", pub.topics[0])
	}
	for i := 1; i < len(pub.seqs); i++ {
		if pub.seqs[i] <= pub.seqs[i-1] {
			t.Fatalf("status published out of order: %v", pub.seqs)
		}
	}
}

func TestServiceAppliesCycleDelayCommands(t *testing.T) {
	pub := &fakeMQTT{}
	s := newTestService(t, Config{Sweeper: testConfig()}, Dependencies{MQTT: pub})
	cancel, done := runService(t, s)
	defer func() {
		cancel()
		<-done
	}()

	topic := "servosweeper/cycle_delay/set"
	waitFor(t, "subscription", func() bool { return pub.subscription(topic) != nil })
	deliver := pub.subscription(topic)

	deliver([]byte("250ms"))
	if d := s.CycleDelay(); d != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", d)
	}
	deliver([]byte("1500\n"))
	if d := s.CycleDelay(); d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", d)
	}
	for _, invalid := range []string{"-1s", "-5", "abc", ""} {
		deliver([]byte(invalid))
		if d := s.CycleDelay(); d != 1500*time.Millisecond {
			t.Errorf("%q: expected cycle delay to stay 1.5s, got %s", invalid, d)
		}
	}
}

func TestSetCycleDelay(t *testing.T) {
	s := newTestService(t, Config{Sweeper: testConfig()}, Dependencies{})
	if err := s.SetCycleDelay(-time.Second); pkgerrors.Cause(err) != model.ValidationError {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if err := s.SetCycleDelay(1500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.CycleDelay() != 1500*time.Millisecond || s.Status().CycleDelay != 1500*time.Millisecond {
		t.Errorf("unexpected cycle delay %s", s.CycleDelay())
	}
}

func TestReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	write := func(content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("actuator:\n  pin: 18\n")
	s := newTestService(t, Config{Sweeper: testConfig(), ConfigPath: path}, Dependencies{})
	log := zerolog.Nop()

	if _, changed := s.reloadConfig(log); changed {
		t.Error("expected no change")
	}

	write("actuator:\n  pin: 18\nsweep:\n  upper_angle: 150\n  cycle_delay: 2s\n")
	conf, changed := s.reloadConfig(log)
	if !changed {
		t.Fatal("expected change")
	}
	if conf.Sweep.UpperAngle != 150 || conf.Sweep.LowerAngle != model.DefaultLowerAngle {
		t.Errorf("unexpected sweep config %+v", conf.Sweep)
	}
	if s.CycleDelay() != 2*time.Second {
		t.Errorf("expected cycle delay 2s, got %s", s.CycleDelay())
	}

	write("sweep:\n  lower_angle: 170\n  upper_angle: 20\n")
	if _, changed := s.reloadConfig(log); changed {
		t.Error("expected invalid configuration to be ignored")
	}
}

func TestReloadConfigKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	if err := os.WriteFile(path, []byte("actuator:\n  pin: 18\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	overrides := func(conf *model.Config) {
		conf.Sweep.CycleDelay = 5 * time.Second
		conf.MQTT.Host = "broker"
	}
	conf := testConfig()
	overrides(&conf)
	s := newTestService(t, Config{Sweeper: conf, ConfigPath: path, Overrides: overrides}, Dependencies{})

	if err := os.WriteFile(path, []byte("actuator:\n  pin: 18\nsweep:\n  settle_delay: 500ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	reloaded, changed := s.reloadConfig(zerolog.Nop())
	if !changed {
		t.Fatal("expected change")
	}
	if reloaded.Sweep.SettleDelay != 500*time.Millisecond || reloaded.Sweep.CycleDelay != 5*time.Second {
		t.Errorf("unexpected sweep config %+v", reloaded.Sweep)
	}
	if reloaded.MQTT.Host != "broker" {
		t.Errorf("expected MQTT host override, got %q", reloaded.MQTT.Host)
	}
	if s.CycleDelay() != 5*time.Second {
		t.Errorf("expected cycle delay 5s, got %s", s.CycleDelay())
	}
}

func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	os.WriteFile(path, []byte("actuator:\n  pin: 18\n"), 0o644)
	s := newTestService(t, Config{Sweeper: testConfig(), ConfigPath: path}, Dependencies{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *model.SweepConfig, 1)
	go s.watchConfig(ctx, changes)

	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(path, []byte("actuator:\n  pin: 18\nsweep:\n  settle_delay: 500ms\n"), 0o644)

	select {
	case conf := <-changes:
		if conf.SettleDelay != 500*time.Millisecond {
			t.Errorf("unexpected settle delay %s", conf.SettleDelay)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no configuration change received")
	}
}
