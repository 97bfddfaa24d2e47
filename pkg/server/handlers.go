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
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Largest cycle delay that fits in a time.Duration
const maxCycleDelayMs = math.MaxInt64 / int64(time.Millisecond)

type cycleDelayRequest struct {
	CycleDelayMs *int64 `json:"cycle_delay_ms"`
}

type cycleDelayResponse struct {
	CycleDelayMs int64 `json:"cycle_delay_ms"`
}

// GET /v1/status
func (s *Server) handleGetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Status())
}

// PUT /v1/cycle-delay
func (s *Server) handlePutCycleDelay(c echo.Context) error {
	var req cycleDelayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CycleDelayMs == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cycle_delay_ms is missing")
	}
	if *req.CycleDelayMs > maxCycleDelayMs {
		return echo.NewHTTPError(http.StatusBadRequest, "cycle_delay_ms is too large")
	}
	d := time.Duration(*req.CycleDelayMs) * time.Millisecond
	if err := s.service.SetCycleDelay(d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cycleDelayResponse{CycleDelayMs: *req.CycleDelayMs})
}
