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

package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/pkg/mqtt/mqtttest"
)

func withFakeClient(t *testing.T) *mqtttest.Client {
	t.Helper()
	client := mqtttest.NewClient()
	old := NewClient
	NewClient = client.Factory()
	t.Cleanup(func() { NewClient = old })
	return client
}

func TestBrokerAddress(t *testing.T) {
	c := Config{Host: "broker.local", Port: 1883}
	if got := c.BrokerAddress(); got != "tcp://broker.local:1883" {
		t.Errorf("unexpected address %q", got)
	}
	if got := (Config{Host: "::1", Port: 1883}).BrokerAddress(); got != "tcp://[::1]:1883" {
		t.Errorf("unexpected IPv6 address %q", got)
	}
}

func TestNewServiceRequiresHost(t *testing.T) {
	if _, err := NewService(Config{}, zerolog.Nop()); err == nil {
		t.Error("expected error for empty host")
	}
}

func TestPublishEncodesJSON(t *testing.T) {
	client := withFakeClient(t)
	svc, err := NewService(Config{Host: "broker", Port: 1883, ClientID: "test"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	msg := struct {
		Angle int `json:"angle"`
	}{Angle: 45}
	if err := svc.Publish(context.Background(), msg, "sweeper/status", QosDefault); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !client.IsConnected() {
		t.Error("expected client to be connected")
	}
	published := client.Published()
	if len(published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(published))
	}
	if published[0].Topic != "sweeper/status" || string(published[0].Payload) != `{"angle":45}` {
		t.Errorf("unexpected message %+v", published[0])
	}

	svc.Close()
	if client.IsConnected() {
		t.Error("expected client to be disconnected after Close")
	}
}

func TestPublishConnectFailure(t *testing.T) {
	client := withFakeClient(t)
	client.ConnectErr = errors.New("refused")
	svc, _ := NewService(Config{Host: "broker", Port: 1883}, zerolog.Nop())
	if err := svc.Publish(context.Background(), "x", "topic", QosDefault); err == nil {
		t.Error("expected error when connect fails")
	}
	if len(client.Published()) != 0 {
		t.Error("expected nothing published")
	}
}

func TestSubscribe(t *testing.T) {
	client := withFakeClient(t)
	svc, _ := NewService(Config{Host: "broker", Port: 1883}, zerolog.Nop())
	var received []string
	if err := svc.Subscribe(context.Background(), "sweeper/cycle_delay/set", QosDefault, func(payload []byte) {
		received = append(received, string(payload))
	}); err != nil {
		t.Fatal(err)
	}
	client.Deliver("sweeper/cycle_delay/set", []byte("250"))
	client.Deliver("sweeper/other", []byte("x"))
	if len(received) != 1 || received[0] != "250" {
		t.Errorf("unexpected messages %v", received)
	}
}

func TestWaitTokenPrefersCompletedToken(t *testing.T) {
	client := mqtttest.NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 50; i++ {
		if err := WaitToken(ctx, client.Publish("topic", QosDefault, false, "x"), time.Second); err != nil {
			t.Fatalf("expected completed token to win, got %v", err)
		}
	}
}
