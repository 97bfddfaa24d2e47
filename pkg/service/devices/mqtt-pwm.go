// Copyright 2024 Ewout Prangsma
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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoSweeper/pkg/mqtt"
)

// mqttPWM is a PWM output of a remote device that is controlled
// through MQTT. Commands are published on
// <prefix>/pin<N>/frequency and <prefix>/pin<N>/pulse_us,
// the device reports its pulse width (in us) on <prefix>/pin<N>/state.
type mqttPWM struct {
	log         zerolog.Logger
	mutex       sync.Mutex
	onActive    func()
	pin         int
	topicPrefix string
	config      mqtt.Config
	timeout     time.Duration

	width    time.Duration
	reported time.Duration
	client   mqttapi.Client
}

// newMQTTPWM creates a remote MQTT PWM device with given config.
func newMQTTPWM(log zerolog.Logger, pin int, topicPrefix string, config mqtt.Config, timeout time.Duration, onActive func()) (PWM, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("MQTT host is empty")
	}
	if topicPrefix == "" {
		return nil, fmt.Errorf("MQTT topic prefix is empty")
	}
	config.ClientID = fmt.Sprintf("%s-pin%d", config.ClientID, pin)
	return &mqttPWM{
		log:         log.With().Str("topic_prefix", topicPrefix).Logger(),
		onActive:    onActive,
		pin:         pin,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/") + "/",
		config:      config,
		timeout:     timeout,
		reported:    -1,
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *mqttPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.client != nil {
		return nil
	}

	// Connect client
	client := mqtt.NewClient(d.config.ClientOptions())
	if err := mqtt.WaitToken(ctx, client.Connect(), d.connectTimeout()); err != nil {
		return errors.Wrapf(err, "Failed to connect to %s", d.config.BrokerAddress())
	}
	stateTopic := d.topic("state")
	if err := mqtt.WaitToken(ctx, client.Subscribe(stateTopic, mqtt.QosAtMostOnce, d.onMessage), d.connectTimeout()); err != nil {
		client.Disconnect(250)
		return errors.Wrapf(err, "Failed to subscribe to '%s'", stateTopic)
	}
	d.client = client

	d.onActive()
	return nil
}

// Close brings the device back to a safe state.
func (d *mqttPWM) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.client != nil {
		d.client.Disconnect(250)
		d.client = nil
	}

	d.onActive()
	return nil
}

// topic returns the full topic of the given pin sub-topic.
func (d *mqttPWM) topic(name string) string {
	return fmt.Sprintf("%spin%d/%s", d.topicPrefix, d.pin, name)
}

func (d *mqttPWM) connectTimeout() time.Duration {
	return 10 * d.timeout
}

// Receive state messages
func (d *mqttPWM) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	us, err := strconv.Atoi(payload)
	if err != nil || us < 0 {
		d.log.Debug().Str("payload", payload).Msg("Ignoring invalid state message")
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.reported = time.Duration(us) * time.Microsecond
}

// publish a command and wait for its delivery
func (d *mqttPWM) publish(ctx context.Context, name, payload string) error {
	if d.client == nil {
		return maskAny(ErrNotConfigured)
	}
	topic := d.topic(name)
	if err := mqtt.WaitToken(ctx, d.client.Publish(topic, mqtt.QosAtMostOnce, false, payload), d.timeout); err != nil {
		commandErrorsTotal.WithLabelValues("mqtt").Inc()
		d.log.Error().Err(err).
			Str("topic", topic).
			Str("payload", payload).
			Msg("failed to deliver MQTT command in time")
		return errors.Wrapf(err, "Failed to publish to '%s'", topic)
	}
	return nil
}

// SetFrequency sets the carrier frequency of the output in Hz.
func (d *mqttPWM) SetFrequency(ctx context.Context, hz uint32) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if hz == 0 {
		return fmt.Errorf("invalid frequency 0Hz")
	}
	if err := d.publish(ctx, "frequency", strconv.FormatUint(uint64(hz), 10)); err != nil {
		return maskAny(err)
	}
	d.onActive()
	return nil
}

// SetPulseWidth sets the high time of each period.
// A zero width disables the output.
func (d *mqttPWM) SetPulseWidth(ctx context.Context, width time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if width < 0 {
		width = 0
	}
	if err := d.publish(ctx, "pulse_us", strconv.FormatInt(width.Microseconds(), 10)); err != nil {
		return maskAny(err)
	}
	d.width = width
	pulseWidthChangesTotal.WithLabelValues("mqtt").Inc()
	return nil
}

// PulseWidth returns the pulse width last reported by the device.
// When the device did not report yet, the last commanded width is returned.
func (d *mqttPWM) PulseWidth(ctx context.Context) (time.Duration, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.client == nil {
		return 0, maskAny(ErrNotConfigured)
	}
	if d.reported >= 0 {
		return d.reported, nil
	}
	return d.width, nil
}
