package model

import (
	"github.com/pkg/errors"
)

const (
	DefaultMQTTPort  = 1883
	DefaultMQTTTopic = "servosweeper"
)

// MQTTConfig holds the connection settings of the MQTT broker
// that receives logs and status messages.
// MQTT is disabled when Host is empty.
type MQTTConfig struct {
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	UserName string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// Prefix of all topics published by the sweeper
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`
	// Forward log messages to <topic>/logs
	Logs bool `json:"logs,omitempty" yaml:"logs,omitempty"`
}

// Enabled returns true when a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Host != ""
}

// StatusTopic returns the topic that sweep status messages are published on.
func (c MQTTConfig) StatusTopic() string {
	return c.Topic + "/status"
}

// CycleDelayTopic returns the topic that cycle delay changes are received on.
func (c MQTTConfig) CycleDelayTopic() string {
	return c.Topic + "/cycle_delay/set"
}

// LogsTopic returns the topic that log messages are published on.
func (c MQTTConfig) LogsTopic() string {
	return c.Topic + "/logs"
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c MQTTConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(ValidationError, "Invalid MQTT port %d", c.Port)
	}
	if c.Topic == "" {
		return errors.Wrap(ValidationError, "MQTT topic is empty")
	}
	return nil
}
