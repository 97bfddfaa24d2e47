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

// Package mqtttest provides an in-memory MQTT client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
)

// Published is a message published through a Client.
type Published struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  []byte
}

// Client is an in-memory implementation of the paho Client.
// Publishing to a subscribed topic delivers the message synchronously.
type Client struct {
	mutex         sync.Mutex
	connected     bool
	published     []Published
	subscriptions map[string]mqttapi.MessageHandler

	// ConnectErr is returned by Connect when set
	ConnectErr error
	// PublishErr is returned by Publish when set
	PublishErr error
}

var _ mqttapi.Client = &Client{}

// NewClient creates a new in-memory client.
func NewClient() *Client {
	return &Client{
		subscriptions: make(map[string]mqttapi.MessageHandler),
	}
}

// Factory returns a function that can replace mqttapi.NewClient.
func (c *Client) Factory() func(*mqttapi.ClientOptions) mqttapi.Client {
	return func(*mqttapi.ClientOptions) mqttapi.Client {
		return c
	}
}

func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *Client) Connect() mqttapi.Token {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.ConnectErr == nil {
		c.connected = true
	}
	return newToken(c.ConnectErr)
}

func (c *Client) Disconnect(quiesce uint) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.connected = false
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqttapi.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	c.mutex.Lock()
	if c.PublishErr != nil {
		c.mutex.Unlock()
		return newToken(c.PublishErr)
	}
	c.published = append(c.published, Published{Topic: topic, Qos: qos, Retained: retained, Payload: data})
	var handlers []mqttapi.MessageHandler
	for filter, h := range c.subscriptions {
		if topicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mutex.Unlock()

	for _, h := range handlers {
		h(c, &message{topic: topic, qos: qos, payload: data})
	}
	return newToken(nil)
}

func (c *Client) Subscribe(topic string, qos byte, callback mqttapi.MessageHandler) mqttapi.Token {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.subscriptions[topic] = callback
	return newToken(nil)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqttapi.MessageHandler) mqttapi.Token {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for topic := range filters {
		c.subscriptions[topic] = callback
	}
	return newToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqttapi.Token {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, topic := range topics {
		delete(c.subscriptions, topic)
	}
	return newToken(nil)
}

func (c *Client) AddRoute(topic string, callback mqttapi.MessageHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.subscriptions[topic] = callback
}

func (c *Client) OptionsReader() mqttapi.ClientOptionsReader {
	return mqttapi.ClientOptionsReader{}
}

// Published returns all messages published so far.
func (c *Client) Published() []Published {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Published(nil), c.published...)
}

// Deliver a message to the subscribers of the given topic, as if
// it was received from the broker.
func (c *Client) Deliver(topic string, payload []byte) {
	c.mutex.Lock()
	var handlers []mqttapi.MessageHandler
	for filter, h := range c.subscriptions {
		if topicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mutex.Unlock()
	for _, h := range handlers {
		h(c, &message{topic: topic, payload: payload})
	}
}

// topicMatches returns true if the topic matches the filter,
// supporting the '+' and '#' wildcards.
func topicMatches(filter, topic string) bool {
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")
	for i, f := range fparts {
		if f == "#" {
			return true
		}
		if i >= len(tparts) {
			return false
		}
		if f != "+" && f != tparts[i] {
			return false
		}
	}
	return len(fparts) == len(tparts)
}

type token struct {
	err  error
	done chan struct{}
}

func newToken(err error) *token {
	t := &token{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.done }
func (t *token) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return m.qos }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
