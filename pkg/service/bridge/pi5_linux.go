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

//go:build linux

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const (
	gpiodConsumer = "servo-sweeper"
)

// Channels of the RP1 PWM controller (with dtoverlay=pwm-2chan the
// pins below are routed to pwmchip channels 0..3).
var pi5PWMChannels = map[int]int{
	12: 0,
	13: 1,
	18: 2,
	19: 3,
}

type pi5Bridge struct {
	mutex    sync.Mutex
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
	greenLed statusLed
	redLed   statusLed
	outputs  map[int]*sysfsPWM
}

// gpiodLine adapts a requested gpiocdev line to OutputPin.
type gpiodLine struct {
	line *gpiocdev.Line
}

func (l gpiodLine) Write(value bool) error {
	v := 0
	if value {
		v = 1
	}
	return l.line.SetValue(v)
}

// NewPi5Bridge implements the bridge for the Raspberry PI 5.
// Memory mapped GPIO does not work on the RP1, so status leds use
// the GPIO character device and the servo signal uses sysfs PWM.
func NewPi5Bridge() (API, error) {
	chip, greenLine, err := requestLedLine(greenLedPin)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redOffset, err := chip.FindLine(fmt.Sprintf("GPIO%d", redLedPin))
	if err == nil {
		var redLine *gpiocdev.Line
		redLine, err = chip.RequestLine(redOffset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(gpiodConsumer))
		if err == nil {
			return &pi5Bridge{
				chip:     chip,
				lines:    []*gpiocdev.Line{greenLine, redLine},
				greenLed: statusLed{pin: gpiodLine{greenLine}},
				redLed:   statusLed{pin: gpiodLine{redLine}},
				outputs:  make(map[int]*sysfsPWM),
			}, nil
		}
	}
	greenLine.Close()
	chip.Close()
	return nil, errors.Wrap(err, "Output[redLed] failed")
}

// requestLedLine finds the chip that exposes the given GPIO and
// requests it as output.
func requestLedLine(pin int) (*gpiocdev.Chip, *gpiocdev.Line, error) {
	lineName := fmt.Sprintf("GPIO%d", pin)
	candidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			candidates = append(candidates, filepath.Join("/dev", e.Name()))
		}
	}
	for _, chipPath := range candidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(gpiodConsumer))
		if err != nil {
			chip.Close()
			continue
		}
		return chip, line, nil
	}
	return nil, nil, fmt.Errorf("gpio line %q not found (or busy)", lineName)
}

// Turn Green status led on/off
func (p *pi5Bridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *pi5Bridge) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *pi5Bridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *pi5Bridge) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

// PWM opens the sysfs PWM channel that drives the given GPIO pin.
func (p *pi5Bridge) PWM(pin int) (PWMOutput, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if out, found := p.outputs[pin]; found {
		return out, nil
	}
	channel, found := pi5PWMChannels[pin]
	if !found {
		return nil, errors.Wrapf(ErrNoHardwarePWM, "Pin %d", pin)
	}
	out, err := openSysfsPWM(pin, channel)
	if err != nil {
		return nil, errors.Wrapf(err, "PWM[%d] failed", pin)
	}
	p.outputs[pin] = out
	return out, nil
}

func (p *pi5Bridge) SupportsPWM(pin int) bool {
	_, found := pi5PWMChannels[pin]
	return found
}

func (p *pi5Bridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for pin, out := range p.outputs {
		ae.Add(out.Close())
		delete(p.outputs, pin)
	}
	ae.Add(p.greenLed.Close())
	ae.Add(p.redLed.Close())
	for _, l := range p.lines {
		ae.Add(l.Close())
	}
	ae.Add(p.chip.Close())
	return ae.AsError()
}
