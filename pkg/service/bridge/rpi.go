//    Copyright 2017 Ewout Prangsma
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
	"sync"
	"time"

	"github.com/ecc1/gpio"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

type piBridge struct {
	mutex    sync.Mutex
	greenLed statusLed
	redLed   statusLed
	outputs  map[int]*rpioPWM
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's up to model 4.
// Status leds use sysfs GPIO, the servo signal uses the BCM PWM peripheral.
func NewRaspberryPiBridge() (API, error) {
	activeLow := true
	initialValue := false
	greenLed, err := gpio.Output(greenLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redLed, err := gpio.Output(redLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[redLed] failed")
	}
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpio.Open failed")
	}
	return &piBridge{
		greenLed: statusLed{pin: greenLed},
		redLed:   statusLed{pin: redLed},
		outputs:  make(map[int]*rpioPWM),
	}, nil
}

// Turn Green status led on/off
func (p *piBridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *piBridge) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *piBridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *piBridge) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

// PWM opens the hardware PWM output that drives the given GPIO pin.
func (p *piBridge) PWM(pin int) (PWMOutput, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if out, found := p.outputs[pin]; found {
		return out, nil
	}
	out, err := openRpioPWM(pin)
	if err != nil {
		return nil, errors.Wrapf(err, "PWM[%d] failed", pin)
	}
	p.outputs[pin] = out
	return out, nil
}

func (p *piBridge) SupportsPWM(pin int) bool {
	_, found := pwmChannel(pin)
	return found
}

func (p *piBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for pin, out := range p.outputs {
		ae.Add(out.Close())
		delete(p.outputs, pin)
	}
	ae.Add(p.greenLed.Close())
	ae.Add(p.redLed.Close())
	ae.Add(rpio.Close())
	return ae.AsError()
}
