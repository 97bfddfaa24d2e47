// Copyright 2020 Ewout Prangsma
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
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/model"
	"github.com/binkynet/ServoSweeper/pkg/mqtt"
	"github.com/binkynet/ServoSweeper/pkg/service/bridge"
)

// Service contains the API that is exposed by the device service.
type Service interface {
	// Configure is called once to put the device in the desired state.
	Configure(ctx context.Context) error
	// PWM returns the configured PWM device.
	// Returns ErrNotConfigured when Configure has not succeeded.
	PWM() (PWM, error)
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
	// Close brings the device back to a safe state.
	Close(context.Context) error
}

type service struct {
	log         zerolog.Logger
	deviceType  model.DeviceType
	device      PWM
	bAPI        bridge.API
	mutex       sync.Mutex
	configured  bool
	activeCount uint32
}

// NewService instantiates a new Service and the PWM device for the given
// device configuration.
// The device drives the given pin. For mqtt devices, mqttConfig
// holds the broker and mqttConfig.Topic is used as topic prefix
// when the device has no address.
func NewService(config model.DeviceConfig, pin int, mqttConfig model.MQTTConfig, clientID string,
	bAPI bridge.API, log zerolog.Logger) (Service, error) {
	s := &service{
		log:        log.With().Str("component", "device-service").Str("device-type", string(config.Type)).Logger(),
		deviceType: config.Type,
		bAPI:       bAPI,
	}
	var err error
	switch config.Type {
	case model.DeviceTypeLocal, "":
		s.device, err = newLocalPWM(pin, bAPI, s.onActive)
	case model.DeviceTypeMQTT:
		topicPrefix := config.Address
		if topicPrefix == "" {
			topicPrefix = strings.TrimSuffix(mqttConfig.Topic, "/") + "/pwm"
		}
		s.device, err = newMQTTPWM(s.log, pin, topicPrefix, mqtt.Config{
			Host:     mqttConfig.Host,
			Port:     mqttConfig.Port,
			UserName: mqttConfig.UserName,
			Password: mqttConfig.Password,
			ClientID: clientID,
		}, config.GetTimeout(), s.onActive)
	case model.DeviceTypeSerial:
		s.device, err = newSerialPWM(s.log, config.Address, config.GetBaudRate(), config.GetTimeout(), s.onActive)
	default:
		return nil, errors.Wrapf(model.ValidationError, "Unsupported device type '%s'", config.Type)
	}
	if err != nil {
		return nil, maskAny(err)
	}
	return s, nil
}

// Configure is called once to put the device in the desired state.
func (s *service) Configure(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	log := s.log
	log.Debug().Msg("configuring device...")
	if err := s.device.Configure(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to configure device")
		devicesConfiguredTotal.Set(0)
		return maskAny(err)
	}
	s.configured = true
	log.Info().Msg("Configured device")
	devicesConfiguredTotal.Set(1)
	return nil
}

// PWM returns the configured PWM device.
func (s *service) PWM() (PWM, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.configured {
		return nil, maskAny(ErrNotConfigured)
	}
	return s.device, nil
}

// Run the service until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	return s.runActiveNotify(ctx)
}

// Close brings the device back to a safe state.
func (s *service) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	if s.configured {
		// Stop sending pulses before releasing the device
		if err := s.device.SetPulseWidth(ctx, 0); err != nil {
			ae.Add(err)
		}
	}
	if err := s.device.Close(ctx); err != nil {
		ae.Add(err)
	}
	s.configured = false
	devicesConfiguredTotal.Set(0)
	return ae.AsError()
}

// onActive is called when a device change is activated.
func (s *service) onActive() {
	atomic.AddUint32(&s.activeCount, 1)
}

// runActiveNotify blinks the green status led when the device has become active
func (s *service) runActiveNotify(ctx context.Context) error {
	if s.bAPI == nil {
		<-ctx.Done()
		return nil
	}
	lastActiveCount := uint32(0)
	count := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-time.After(time.Second / 10):
			newActiveCount := atomic.LoadUint32(&s.activeCount)
			if newActiveCount != lastActiveCount {
				lastActiveCount = newActiveCount
				s.bAPI.BlinkGreenLED(time.Second / 10)
				count = 0
			} else if count < 20 {
				count++
			} else if count == 20 {
				count++
				s.bAPI.SetGreenLED(true)
			}
		}
	}
}
