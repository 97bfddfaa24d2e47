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

package devices

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// serialPort is the part of serial.Port used by the serial PWM device.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// openSerialFn opens a serial port.
// Replaced in tests.
var openSerialFn = func(name string, baudRate int) (serialPort, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return port, nil
}

const (
	serialReadPoll = 10 * time.Millisecond
)

// serialPWM is a PWM output of a microcontroller attached to a serial port.
// Every command is a single line ("F<hz>" or "P<us>"), answered
// with a single line ("OK" or "ERR <reason>").
type serialPWM struct {
	log      zerolog.Logger
	mutex    sync.Mutex
	onActive func()
	portName string
	baudRate int
	timeout  time.Duration

	port    serialPort
	pending []byte
	width   time.Duration
}

// newSerialPWM creates a serial PWM device on the given port.
func newSerialPWM(log zerolog.Logger, portName string, baudRate int, timeout time.Duration, onActive func()) (PWM, error) {
	if portName == "" {
		return nil, fmt.Errorf("serial port name is empty")
	}
	return &serialPWM{
		log:      log.With().Str("port", portName).Logger(),
		onActive: onActive,
		portName: portName,
		baudRate: baudRate,
		timeout:  timeout,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *serialPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port != nil {
		return nil
	}
	port, err := openSerialFn(d.portName, d.baudRate)
	if err != nil {
		return errors.Wrapf(err, "Failed to open serial port '%s'", d.portName)
	}
	if err := port.SetReadTimeout(serialReadPoll); err != nil {
		port.Close()
		return errors.Wrapf(err, "Failed to set read timeout of '%s'", d.portName)
	}
	d.port = port
	d.pending = nil
	d.log.Debug().Int("baudrate", d.baudRate).Msg("Opened serial port")
	d.onActive()
	return nil
}

// Close brings the device back to a safe state.
func (d *serialPWM) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.onActive()
	return maskAny(err)
}

// command sends a single command line and waits for its reply.
// Once a command is sent, its reply is always read (or timed out),
// so the next command never sees it.
func (d *serialPWM) command(ctx context.Context, cmd string) error {
	if d.port == nil {
		return maskAny(ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "Not sending '%s'", cmd)
	}
	// Drop late replies of commands that timed out
	d.pending = nil
	if err := d.port.ResetInputBuffer(); err != nil {
		d.log.Debug().Err(err).Msg("Failed to reset input buffer")
	}
	if _, err := io.WriteString(d.port, cmd+"\n"); err != nil {
		commandErrorsTotal.WithLabelValues("serial").Inc()
		return errors.Wrapf(err, "Failed to send '%s'", cmd)
	}
	reply, err := d.readLine()
	if err != nil {
		commandErrorsTotal.WithLabelValues("serial").Inc()
		return errors.Wrapf(err, "No reply to '%s'", cmd)
	}
	switch {
	case reply == "OK":
		return nil
	case strings.HasPrefix(reply, "ERR"):
		commandErrorsTotal.WithLabelValues("serial").Inc()
		return fmt.Errorf("device rejected '%s': %s", cmd, strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
	default:
		commandErrorsTotal.WithLabelValues("serial").Inc()
		return fmt.Errorf("unexpected reply to '%s': '%s'", cmd, reply)
	}
}

// readLine reads a single reply line, without line terminator.
func (d *serialPWM) readLine() (string, error) {
	deadline := time.Now().Add(d.timeout)
	var buf [64]byte
	for {
		if idx := bytes.IndexByte(d.pending, '\n'); idx >= 0 {
			line := strings.TrimSpace(string(d.pending[:idx]))
			d.pending = d.pending[idx+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("timeout after %s", d.timeout)
		}
		n, err := d.port.Read(buf[:])
		if err != nil {
			return "", maskAny(err)
		}
		d.pending = append(d.pending, buf[:n]...)
	}
}

// SetFrequency sets the carrier frequency of the output in Hz.
func (d *serialPWM) SetFrequency(ctx context.Context, hz uint32) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if hz == 0 {
		return fmt.Errorf("invalid frequency 0Hz")
	}
	if err := d.command(ctx, fmt.Sprintf("F%d", hz)); err != nil {
		return maskAny(err)
	}
	d.onActive()
	return nil
}

// SetPulseWidth sets the high time of each period.
// A zero width disables the output.
func (d *serialPWM) SetPulseWidth(ctx context.Context, width time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if width < 0 {
		width = 0
	}
	if err := d.command(ctx, fmt.Sprintf("P%d", width.Microseconds())); err != nil {
		return maskAny(err)
	}
	d.width = width
	pulseWidthChangesTotal.WithLabelValues("serial").Inc()
	return nil
}

// PulseWidth returns the last pulse width acknowledged by the device.
func (d *serialPWM) PulseWidth(ctx context.Context) (time.Duration, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.port == nil {
		return 0, maskAny(ErrNotConfigured)
	}
	return d.width, nil
}
