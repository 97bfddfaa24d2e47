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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

func seqs(events []sweep.Event) []uint64 {
	var result []uint64
	for _, evt := range events {
		result = append(result, evt.Seq)
	}
	return result
}

func TestEventOrder(t *testing.T) {
	var order eventOrder
	steps := []struct {
		add  uint64
		want []uint64
	}{
		{2, nil},
		{3, nil},
		{1, []uint64{1, 2, 3}},
		{3, nil},
		{5, nil},
		{4, []uint64{4, 5}},
		{1, nil},
		{7, nil},
	}
	for _, step := range steps {
		got := seqs(order.add(sweep.Event{Seq: step.add}))
		if diff := cmp.Diff(step.want, got); diff != "" {
			t.Errorf("add %d: unexpected events (-want +got):\n%s", step.add, diff)
		}
	}
	if diff := cmp.Diff([]uint64{7}, seqs(order.flush())); diff != "" {
		t.Errorf("unexpected flushed events (-want +got):\n%s", diff)
	}
	if got := seqs(order.add(sweep.Event{Seq: 6})); got != nil {
		t.Errorf("expected event older than flushed ones to be dropped, got %v", got)
	}
	if diff := cmp.Diff([]uint64{8}, seqs(order.add(sweep.Event{Seq: 8}))); diff != "" {
		t.Errorf("unexpected events after flush (-want +got):\n%s", diff)
	}
}

func TestStatusMessageUsesEventState(t *testing.T) {
	s := newTestService(t, Config{Sweeper: testConfig()}, Dependencies{})
	evt := sweep.Event{Seq: 3, Type: sweep.EventPhaseChanged, Phase: sweep.PhaseSettle, Angle: 45}
	msg := s.newStatusMessage(evt)
	if msg.Status.Phase != sweep.PhaseSettle || msg.Status.Angle != 45 {
		t.Errorf("expected status at settle/45, got %s/%d", msg.Status.Phase, msg.Status.Angle)
	}
	if diff := cmp.Diff(evt, msg.Event); diff != "" {
		t.Errorf("unexpected event (-want +got):\n%s", diff)
	}
	if msg.Status.HostID != "test" || msg.Status.Pin != 18 {
		t.Errorf("unexpected status %+v", msg.Status)
	}
}
