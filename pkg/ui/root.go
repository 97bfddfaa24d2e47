// Copyright 2023 Ewout Prangsma
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

package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/ServoSweeper/pkg/service"
)

const (
	refreshInterval = 250 * time.Millisecond
	loadAvgInterval = 2 * time.Second
	cycleDelayStep  = 100 * time.Millisecond
	maxAngle        = 180
)

var (
	labelStyle = lipgloss.NewStyle().Width(14).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Source provides the state shown by the UI.
type Source interface {
	Status() service.Status
	CycleDelay() time.Duration
	SetCycleDelay(d time.Duration) error
}

type Root struct {
	source  Source
	term    string
	width   int
	height  int
	loadAvg string

	status   service.Status
	angleBar progress.Model
	// Error of the last key action
	actionErr string
}

var _ tea.Model = Root{}

// NewRoot creates the root model for a terminal of the given type.
func NewRoot(source Source, term string, width, height int) Root {
	return Root{
		source:   source,
		term:     term,
		width:    width,
		height:   height,
		status:   source.Status(),
		angleBar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(doReloadCPULoadAvg(), r.doReloadStatus())
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAvgMsg:
		r.loadAvg = string(msg)
		return r, doReloadCPULoadAvg()
	case statusMsg:
		r.status = service.Status(msg)
		return r, r.doReloadStatus()
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "+", "=":
			r = r.changeCycleDelay(cycleDelayStep)
		case "-":
			r = r.changeCycleDelay(-cycleDelayStep)
		}
	}
	return r, nil
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	st := r.status
	var b strings.Builder
	b.WriteString(r.headerView())
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
		b.WriteString("\n")
	}
	attached := "no"
	if st.Attached {
		attached = fmt.Sprintf("pin %d (%s)", st.Pin, st.DeviceType)
	}
	row("Attached", attached)
	row("Phase", string(st.Phase))
	row("Angle", fmt.Sprintf("%3d° %s", st.Angle, r.angleBar.ViewAs(float64(st.Angle)/maxAngle)))
	row("Sweeps", humanize.Comma(int64(st.Sweeps)))
	row("Write errors", humanize.Comma(int64(st.WriteErrors)))
	row("Last sweep", st.LastSweepDuration.String())
	row("Cycle delay", st.CycleDelay.String())
	if !st.StartedAt.IsZero() {
		row("Started", humanize.Time(st.StartedAt))
	}
	if st.LastError != "" {
		row("Last error", errorStyle.Render(st.LastError))
	}
	if r.actionErr != "" {
		b.WriteString(errorStyle.Render(r.actionErr))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("+/- - Change cycle delay by 100ms\nq - Disconnect"))
	b.WriteString("\n")
	return b.String()
}

func (r Root) headerView() string {
	title := "Servo Sweeper"
	if r.status.HostID != "" {
		title += " on " + r.status.HostID
	}
	if r.status.ProgramVersion != "" {
		title += " (" + r.status.ProgramVersion + ")"
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		title+"  ",
		r.loadAvg,
	) + "\n"
}

// changeCycleDelay adds delta to the cycle delay, stopping at 0.
func (r Root) changeCycleDelay(delta time.Duration) Root {
	d := r.source.CycleDelay() + delta
	if d < 0 {
		d = 0
	}
	if err := r.source.SetCycleDelay(d); err != nil {
		r.actionErr = err.Error()
	} else {
		r.actionErr = ""
		r.status.CycleDelay = d
	}
	return r
}

type statusMsg service.Status

func (r Root) doReloadStatus() tea.Cmd {
	source := r.source
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return statusMsg(source.Status())
	})
}

type loadAvgMsg string

func doReloadCPULoadAvg() tea.Cmd {
	return tea.Tick(loadAvgInterval, func(t time.Time) tea.Msg {
		if content, err := os.ReadFile("/proc/loadavg"); err != nil {
			return loadAvgMsg(err.Error())
		} else {
			return loadAvgMsg(strings.TrimSpace(string(content)))
		}
	})
}
