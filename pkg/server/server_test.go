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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/binkynet/ServoSweeper/pkg/service"
	"github.com/binkynet/ServoSweeper/pkg/sweep"
)

type fakeService struct {
	status     service.Status
	attached   bool
	cycleDelay []time.Duration
}

func (f *fakeService) Status() service.Status { return f.status }
func (f *fakeService) Attached() bool         { return f.attached }
func (f *fakeService) SetCycleDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative cycle delay %s", d)
	}
	f.cycleDelay = append(f.cycleDelay, d)
	return nil
}

type nopUI struct{}

func (nopUI) Handler(ssh.Session) (tea.Model, []tea.ProgramOption) { return nil, nil }

func newTestServer(t *testing.T, svc *fakeService) *Server {
	t.Helper()
	s, err := New(Config{Host: "127.0.0.1"}, zerolog.Nop(), nopUI{}, svc)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.newHTTPRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewDefaultsHostKeyPath(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	if s.HostKeyPath != defaultHostKeyPath {
		t.Errorf("unexpected host key path %q", s.HostKeyPath)
	}
}

func TestGetStatus(t *testing.T) {
	svc := &fakeService{status: service.Status{
		HostID:   "pi",
		Attached: true,
		Phase:    sweep.PhaseForward,
		Angle:    120,
		Sweeps:   7,
	}}
	rec := do(newTestServer(t, svc), http.MethodGet, "/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", rec.Code)
	}
	var got service.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if diff := cmp.Diff(svc.status, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestPutCycleDelay(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     []time.Duration
	}{
		{"valid", `{"cycle_delay_ms":250}`, http.StatusOK, []time.Duration{250 * time.Millisecond}},
		{"zero", `{"cycle_delay_ms":0}`, http.StatusOK, []time.Duration{0}},
		{"negative", `{"cycle_delay_ms":-5}`, http.StatusBadRequest, nil},
		{"largest", fmt.Sprintf(`{"cycle_delay_ms":%d}`, maxCycleDelayMs), http.StatusOK, []time.Duration{time.Duration(maxCycleDelayMs) * time.Millisecond}},
		{"overflow", `{"cycle_delay_ms":18446744073710}`, http.StatusBadRequest, nil},
		{"missing", `{}`, http.StatusBadRequest, nil},
		{"malformed", `{"cycle_delay_ms":`, http.StatusBadRequest, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := do(newTestServer(t, svc), http.MethodPut, "/v1/cycle-delay", test.body)
			if rec.Code != test.wantCode {
				t.Errorf("expected %d, got %d (%s)", test.wantCode, rec.Code, rec.Body.String())
			}
			if diff := cmp.Diff(test.want, svc.cycleDelay); diff != "" {
				t.Errorf("cycle delay mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(t, &fakeService{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("unexpected status code %d", rec.Code)
	}
}

func TestUpdateHealth(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)
	hs := health.NewServer()
	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatal(err)
		}
		return resp.GetStatus()
	}

	s.updateHealth(hs)
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %s", got)
	}
	svc.attached = true
	s.updateHealth(hs)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", got)
	}
}
