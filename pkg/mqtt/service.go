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

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// QosAtMostOnce represents "QoS 0: At most once delivery".
	QosAtMostOnce byte = 0
	// QosAsLeastOnce represents "QoS 1: At least once delivery".
	QosAsLeastOnce byte = 1
	// QosExactlyOnce represents "QoS 2: Exactly once delivery".
	QosExactlyOnce byte = 2
	// QosDefault is used for status & log messages
	QosDefault = QosAtMostOnce

	connectTimeout = 5 * time.Second
	publishTimeout = 200 * time.Millisecond
)

var (
	maskAny = errors.WithStack

	// NewClient creates the underlying MQTT client.
	// Replaced in tests.
	NewClient = mqttapi.NewClient
)

type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	ClientID string
}

// BrokerAddress returns the tcp URL of the broker.
func (c Config) BrokerAddress() string {
	return "tcp://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ClientOptions builds the options for a paho client connected to
// the configured broker.
func (c Config) ClientOptions() *mqttapi.ClientOptions {
	opts := mqttapi.NewClientOptions().
		AddBroker(c.BrokerAddress()).
		SetClientID(c.ClientID)
	if c.UserName != "" {
		opts.SetUsername(c.UserName)
		opts.SetPassword(c.Password)
	}
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	return opts
}

// Publisher is implemented by anything that can publish JSON encoded messages.
type Publisher interface {
	// Publish a JSON encoded message into a topic.
	Publish(ctx context.Context, msg interface{}, topic string, qos byte) error
}

// Service contains the API exposed by the MQTT service.
type Service interface {
	Publisher
	// Close the service
	Close() error
	// Subscribe to a topic. The callback is invoked with the raw
	// payload of every message received on the topic.
	Subscribe(ctx context.Context, topic string, qos byte, cb func(payload []byte)) error
}

// NewService instantiates a new MQTT service.
// The connection is made on first use.
func NewService(config Config, logger zerolog.Logger) (Service, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("MQTT host is empty")
	}
	log := logger.With().Str("component", "mqtt").Logger()
	opts := config.ClientOptions()
	opts.SetConnectionLostHandler(func(c mqttapi.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	return &service{
		Config: config,
		log:    log,
		client: NewClient(opts),
	}, nil
}

type service struct {
	Config
	log       zerolog.Logger
	mutex     sync.Mutex
	client    mqttapi.Client
	connected bool
}

// Close the service
func (s *service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		s.client.Disconnect(250)
		s.connected = false
	}
	return nil
}

// connect opens a connection.
func (s *service) connect(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		return nil
	}
	if err := WaitToken(ctx, s.client.Connect(), connectTimeout); err != nil {
		return errors.Wrapf(err, "Failed to connect to %s", s.BrokerAddress())
	}
	s.connected = true
	s.log.Debug().Str("broker", s.BrokerAddress()).Msg("Connected to MQTT broker")
	return nil
}

// Publish a JSON encoded message into a topic.
func (s *service) Publish(ctx context.Context, msg interface{}, topic string, qos byte) error {
	encodedMsg, err := json.Marshal(msg)
	if err != nil {
		return maskAny(err)
	}
	if err := s.connect(ctx); err != nil {
		return maskAny(err)
	}
	if err := WaitToken(ctx, s.client.Publish(topic, qos, false, encodedMsg), publishTimeout); err != nil {
		return errors.Wrapf(err, "Failed to publish to '%s'", topic)
	}
	return nil
}

// Subscribe to a topic
func (s *service) Subscribe(ctx context.Context, topic string, qos byte, cb func(payload []byte)) error {
	if err := s.connect(ctx); err != nil {
		return maskAny(err)
	}
	handler := func(c mqttapi.Client, m mqttapi.Message) {
		cb(m.Payload())
	}
	if err := WaitToken(ctx, s.client.Subscribe(topic, qos, handler), connectTimeout); err != nil {
		return errors.Wrapf(err, "Failed to subscribe to '%s'", topic)
	}
	return nil
}

// WaitToken waits until the given token completes, the timeout expires
// or the context is canceled.
// A completed token wins over a canceled context.
func WaitToken(ctx context.Context, token mqttapi.Token, timeout time.Duration) error {
	select {
	case <-token.Done():
		return token.Error()
	default:
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return fmt.Errorf("timeout after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
