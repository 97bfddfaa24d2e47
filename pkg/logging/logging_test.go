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

package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recordingPublisher struct {
	mutex    sync.Mutex
	topics   []string
	messages []string
}

func (p *recordingPublisher) Publish(ctx context.Context, msg interface{}, topic string, qos byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg.(logMsg).Message)
	return nil
}

func (p *recordingPublisher) snapshot() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.messages...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestWriter(t *testing.T) (*mqttLogger, *recordingPublisher) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := NewMQTTWriter(ctx).(*mqttLogger)
	w.mutex.Lock()
	w.idleDelay = time.Millisecond
	w.mutex.Unlock()
	return w, &recordingPublisher{}
}

func TestMQTTWriterForwards(t *testing.T) {
	w, pub := newTestWriter(t)
	w.SetDestination("sweeper/logs", pub)
	w.Enable(true)

	buf := []byte("first")
	w.Write(buf)
	copy(buf, "XXXXX")
	w.Write([]byte("second"))

	waitFor(t, func() bool { return len(pub.snapshot()) == 2 })
	if diff := cmp.Diff([]string{"first", "second"}, pub.snapshot()); diff != "" {
		t.Errorf("unexpected messages (-want +got):\n%s", diff)
	}
	if pub.topics[0] != "sweeper/logs" {
		t.Errorf("unexpected topic %q", pub.topics[0])
	}
}

func TestMQTTWriterDropsOldest(t *testing.T) {
	w, pub := newTestWriter(t)
	total := mqttQueueSize + 10
	for i := 0; i < total; i++ {
		if n, err := w.Write([]byte(fmt.Sprintf("line %d", i))); err != nil || n == 0 {
			t.Fatalf("Write failed: %d, %v", n, err)
		}
	}
	w.SetDestination("logs", pub)
	w.Enable(true)

	waitFor(t, func() bool { return len(pub.snapshot()) == mqttQueueSize })
	msgs := pub.snapshot()
	if msgs[0] != "line 10" || msgs[len(msgs)-1] != fmt.Sprintf("line %d", total-1) {
		t.Errorf("unexpected first/last message %q / %q", msgs[0], msgs[len(msgs)-1])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken") }

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter(&a, failingWriter{})
	w.Add(&b)

	n, err := w.Write([]byte("hello"))
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if err == nil {
		t.Error("expected error of failing output")
	}
	if a.String() != "hello" || b.String() != "hello" {
		t.Errorf("expected all outputs to receive the line, got %q and %q", a.String(), b.String())
	}
}
